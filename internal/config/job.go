package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/BartekS5/ridsync/internal/etl"
	"github.com/BartekS5/ridsync/pkg/database"
	"github.com/BartekS5/ridsync/pkg/models"
)

const (
	DefaultBatchSize = 10000
	DefaultRowID     = "row_id"
	DefaultPolicy    = "incremental"
	DefaultRename    = "by-name"
)

// LoadJob reads and parses a job file, filling in defaults.
func LoadJob(filePath string) (*models.Job, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read job file '%s': %w", filePath, err)
	}
	job, err := ParseJob(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse job file '%s': %w", filePath, err)
	}
	return job, nil
}

// ParseJob decodes a job document. Unknown keys are rejected.
func ParseJob(data []byte) (*models.Job, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var job models.Job
	if err := dec.Decode(&job); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("job file is empty")
		}
		return nil, err
	}
	applyDefaults(&job)
	if err := validateJob(&job); err != nil {
		return nil, err
	}
	return &job, nil
}

func applyDefaults(job *models.Job) {
	if job.Policy == "" {
		job.Policy = DefaultPolicy
	}
	if job.RenameMode == "" {
		job.RenameMode = DefaultRename
	}
	if job.Source.BatchSize == 0 {
		job.Source.BatchSize = DefaultBatchSize
	}
	if job.Source.RowID == "" {
		job.Source.RowID = DefaultRowID
	}
	if job.Destination.RowID == "" {
		job.Destination.RowID = job.Source.RowID
		for _, r := range job.Rename {
			if r.From == job.Source.RowID {
				job.Destination.RowID = r.To
			}
		}
	}
	if job.Name == "" {
		job.Name = job.Source.Table + "->" + job.Destination.Table
	}
}

func validateJob(job *models.Job) error {
	for side, ts := range map[string]models.TableSpec{"source": job.Source, "destination": job.Destination} {
		if ts.Table == "" {
			return fmt.Errorf("%s.table is required", side)
		}
		if ts.Conn == "" {
			return fmt.Errorf("%s.conn is required", side)
		}
		if _, err := database.DialectByName(ts.Driver); err != nil {
			return fmt.Errorf("%s.driver: %w", side, err)
		}
	}
	if _, err := etl.PolicyByName(job.Policy); err != nil {
		return fmt.Errorf("policy: %w", err)
	}
	if job.Source.BatchSize < 0 {
		return fmt.Errorf("source.batch_size must be positive, got %d", job.Source.BatchSize)
	}
	if len(job.Casts) > 0 && len(job.Source.Columns) == 0 {
		return errors.New("casts require an explicit source.columns list")
	}
	return nil
}

// ConnEnvVar is the environment variable holding the DSN for a named connection.
func ConnEnvVar(name string) string {
	n := strings.ToUpper(strings.TrimSpace(name))
	n = strings.NewReplacer("-", "_", ".", "_", " ", "_").Replace(n)
	return EnvPrefix + "_CONN_" + n
}

// ResolveDSN looks up the connection string for a named connection.
func ResolveDSN(name string) (string, error) {
	key := ConnEnvVar(name)
	dsn := os.Getenv(key)
	if dsn == "" {
		return "", fmt.Errorf("connection %q: %s environment variable not set", name, key)
	}
	return dsn, nil
}
