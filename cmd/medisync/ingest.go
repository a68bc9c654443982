package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/medisync/medisync/internal/config"
	"github.com/medisync/medisync/internal/domain/note"
	"github.com/medisync/medisync/internal/domain/patient"
	"github.com/medisync/medisync/internal/ingest"
	"github.com/medisync/medisync/internal/platform/blobstore"
	"github.com/medisync/medisync/internal/platform/db"
	"github.com/medisync/medisync/internal/platform/stream"
	"github.com/medisync/medisync/internal/platform/telemetry"
)

const publishBatchSize = 100

func ingestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Load patients and clinical notes",
	}

	patientsCmd := &cobra.Command{
		Use:   "patients",
		Short: "Upsert patients from a CSV file",
		RunE: func(cmd *cobra.Command, args []string) error {
			source, _ := cmd.Flags().GetString("source")
			return runIngest(cmd, func(ctx context.Context, rt *runtime, p *ingest.Pipeline) (ingest.Result, error) {
				rc, err := blobstore.New(s3Config(rt.cfg)).Open(ctx, source)
				if err != nil {
					return ingest.Result{}, err
				}
				defer rc.Close()

				records, err := ingest.ReadPatientsCSV(rc)
				if err != nil {
					return ingest.Result{}, fmt.Errorf("%s: %w", source, err)
				}
				return p.IngestPatients(ctx, records)
			})
		},
	}
	patientsCmd.Flags().String("source", "patients.csv", "CSV path or s3:// URI")
	cmd.AddCommand(patientsCmd)

	noteIngestCmd := &cobra.Command{
		Use:   "notes",
		Short: "Store and tag clinical notes from JSON lines or Kafka",
		RunE: func(cmd *cobra.Command, args []string) error {
			source, _ := cmd.Flags().GetString("source")
			fromKafka, _ := cmd.Flags().GetBool("kafka")
			idle, _ := cmd.Flags().GetDuration("idle-timeout")
			maxMessages, _ := cmd.Flags().GetInt("max-messages")

			return runIngest(cmd, func(ctx context.Context, rt *runtime, p *ingest.Pipeline) (ingest.Result, error) {
				if fromKafka {
					if err := requireKafka(rt.cfg); err != nil {
						return ingest.Result{}, err
					}
					reader, err := stream.NewNoteReader(stream.ReaderConfig{
						Brokers:     rt.cfg.KafkaBrokers,
						Topic:       rt.cfg.KafkaNotesTopic,
						GroupID:     rt.cfg.KafkaGroupID,
						IdleTimeout: idle,
						MaxMessages: maxMessages,
					})
					if err != nil {
						return ingest.Result{}, err
					}
					defer reader.Close()
					return p.IngestNotes(ctx, ingest.NewKafkaSource(reader))
				}

				rc, err := blobstore.New(s3Config(rt.cfg)).Open(ctx, source)
				if err != nil {
					return ingest.Result{}, err
				}
				defer rc.Close()
				return p.IngestNotes(ctx, ingest.NewJSONLinesSource(rc))
			})
		},
	}
	noteIngestCmd.Flags().String("source", "notes.jsonl", "JSON lines path or s3:// URI")
	noteIngestCmd.Flags().Bool("kafka", false, "Consume notes from the configured Kafka topic")
	noteIngestCmd.Flags().Duration("idle-timeout", stream.DefaultIdleTimeout, "Stop consuming after this long without messages")
	noteIngestCmd.Flags().Int("max-messages", 0, "Stop consuming after this many messages (0: no limit)")
	cmd.AddCommand(noteIngestCmd)

	sampleCmd := &cobra.Command{
		Use:   "sample",
		Short: "Write sample patients.csv and notes.jsonl if absent",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			loc, err := blobstore.ParseURI(dir, true)
			if err != nil {
				return err
			}

			rt, err := loadRuntime(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer rt.Close()

			created, err := ingest.WriteSamples(cmd.Context(), blobstore.New(s3Config(rt.cfg)), loc)
			if err != nil {
				return err
			}
			for _, c := range created {
				rt.logger.Info().Str("location", c.String()).Msg("sample file written")
			}
			if len(created) == 0 {
				rt.logger.Info().Str("dir", loc.String()).Msg("sample files already present")
			}
			return nil
		},
	}
	sampleCmd.Flags().String("dir", ".", "Target directory or s3:// prefix")
	cmd.AddCommand(sampleCmd)

	return cmd
}

type ingestFunc func(ctx context.Context, rt *runtime, p *ingest.Pipeline) (ingest.Result, error)

// runIngest wires the pipeline onto one pooled connection held for the batch.
func runIngest(cmd *cobra.Command, fn ingestFunc) error {
	ctx := cmd.Context()
	rt, err := loadRuntime(ctx, true)
	if err != nil {
		return err
	}
	defer rt.Close()

	metrics := telemetry.NewMetrics()
	patients := patient.NewService(patient.NewRepo(rt.pool))
	notes := note.NewService(note.NewRepo(rt.pool), patients, metrics)
	pipeline := ingest.NewPipeline(patients, notes, metrics, rt.logger)

	start := time.Now()
	var res ingest.Result
	err = db.WithConn(ctx, rt.pool, func(ctx context.Context) error {
		var err error
		res, err = fn(ctx, rt, pipeline)
		return err
	})
	if err != nil {
		rt.logger.Error().Err(err).Int("processed", res.Processed).Msg("ingestion aborted")
		return err
	}
	return writeResult(cmd.OutOrStdout(), res, time.Since(start))
}

func writeResult(w io.Writer, res ingest.Result, elapsed time.Duration) error {
	enc := json.NewEncoder(w)
	return enc.Encode(struct {
		ingest.Result
		Elapsed string `json:"elapsed"`
	}{res, elapsed.Round(time.Millisecond).String()})
}

func notesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notes",
		Short: "Clinical note utilities",
	}

	publishCmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish a JSON lines file of notes to Kafka",
		RunE: func(cmd *cobra.Command, args []string) error {
			source, _ := cmd.Flags().GetString("source")
			ctx := cmd.Context()

			rt, err := loadRuntime(ctx, false)
			if err != nil {
				return err
			}
			defer rt.Close()
			if err := requireKafka(rt.cfg); err != nil {
				return err
			}

			writer, err := stream.NewNoteWriter(stream.WriterConfig{
				Brokers: rt.cfg.KafkaBrokers,
				Topic:   rt.cfg.KafkaNotesTopic,
			})
			if err != nil {
				return err
			}
			defer writer.Close()

			rc, err := blobstore.New(s3Config(rt.cfg)).Open(ctx, source)
			if err != nil {
				return err
			}
			defer rc.Close()

			n, err := publishNotes(ctx, ingest.NewJSONLinesSource(rc), writer)
			if err != nil {
				return err
			}
			rt.logger.Info().Int("published", n).Str("topic", rt.cfg.KafkaNotesTopic).Msg("notes published")
			return nil
		},
	}
	publishCmd.Flags().String("source", "notes.jsonl", "JSON lines path or s3:// URI")
	cmd.AddCommand(publishCmd)

	return cmd
}

type notePublisher interface {
	Publish(ctx context.Context, key func(v any) string, records ...any) error
}

// publishNotes validates each line as a note record and sends them in
// batches keyed by MRN.
func publishNotes(ctx context.Context, src ingest.NoteSource, pub notePublisher) (int, error) {
	var (
		batch []any
		total int
	)
	flush := func(ctx context.Context) error {
		if len(batch) == 0 {
			return nil
		}
		if err := pub.Publish(ctx, noteKey, batch...); err != nil {
			return err
		}
		total += len(batch)
		batch = batch[:0]
		return nil
	}

	err := src.Each(ctx, func(ctx context.Context, raw []byte) error {
		var rec ingest.NoteRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return fmt.Errorf("decode note: %w", err)
		}
		if rec.MRN == "" {
			return errors.New("note is missing mrn")
		}
		batch = append(batch, rec)
		if len(batch) >= publishBatchSize {
			return flush(ctx)
		}
		return nil
	})
	if err != nil {
		return total, err
	}
	return total, flush(ctx)
}

func noteKey(v any) string {
	if rec, ok := v.(ingest.NoteRecord); ok {
		return rec.MRN
	}
	return ""
}

func s3Config(cfg *config.Config) blobstore.S3Config {
	return blobstore.S3Config{
		Region:          cfg.S3Region,
		Endpoint:        cfg.S3Endpoint,
		PathStyle:       cfg.S3PathStyle,
		AccessKeyID:     cfg.S3AccessKeyID,
		SecretAccessKey: cfg.S3SecretAccessKey,
	}
}

func requireKafka(cfg *config.Config) error {
	if !cfg.KafkaEnabled() {
		return errors.New("KAFKA_BROKERS must be set to use Kafka")
	}
	return nil
}
