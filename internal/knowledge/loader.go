// Package knowledge loads question/answer corpora from JSON or YAML files.
package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/hyperjump/kotae/internal/models"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Loader produces a corpus. Implementations load everything or nothing.
type Loader interface {
	Load(ctx context.Context) (*models.Corpus, error)
}

// Field names. The instruction/input/output names are what the dataset generator
// historically wrote and are accepted as aliases.
const (
	FieldQuestion    = "question"
	FieldAnswer      = "answer"
	FieldInstruction = "instruction"
	FieldOutput      = "output"
	FieldMetadata    = "metadata"
)

var validate = validator.New()

// FileLoader reads a knowledge base file. The format follows the extension:
// .json holds an array of objects, .yaml/.yml a sequence of mappings.
type FileLoader struct {
	Path   string
	logger *zap.Logger
}

// Option configures a FileLoader.
type Option func(*FileLoader)

// WithLogger sets the logger for the loader.
func WithLogger(logger *zap.Logger) Option {
	return func(l *FileLoader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewFileLoader returns a loader for path.
func NewFileLoader(path string, opts ...Option) *FileLoader {
	l := &FileLoader{Path: path, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads and validates the whole file. A missing file yields *NotFoundError; any
// unusable content yields *MalformedDataError. No partial corpus is ever returned.
func (l *FileLoader) Load(ctx context.Context) (*models.Corpus, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(l.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) || errors.Is(err, os.ErrPermission) {
			return nil, &NotFoundError{Path: l.Path, Err: err}
		}
		return nil, fmt.Errorf("failed to read knowledge base: %w", err)
	}

	raw, err := decode(l.Path, data)
	if err != nil {
		return nil, err
	}
	records, err := Parse(l.Path, raw)
	if err != nil {
		return nil, err
	}
	corpus := models.NewCorpus(l.Path, records)
	l.logger.Info("knowledge base loaded",
		zap.String("path", l.Path),
		zap.Int("records", corpus.Len()),
		zap.String("fingerprint", corpus.Fingerprint))
	return corpus, nil
}

func decode(path string, data []byte) ([]map[string]any, error) {
	var raw []map[string]any
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&raw); err != nil {
			return nil, &MalformedDataError{Path: path, Record: -1, Reason: "expected a JSON array of objects", Err: err}
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, &MalformedDataError{Path: path, Record: -1, Reason: "expected a YAML sequence of mappings", Err: err}
		}
	default:
		return nil, &MalformedDataError{Path: path, Record: -1, Reason: fmt.Sprintf("unsupported file extension %q", ext)}
	}
	return raw, nil
}

// Parse converts decoded objects into records, validating each one.
func Parse(path string, raw []map[string]any) ([]models.QARecord, error) {
	if len(raw) == 0 {
		return nil, &MalformedDataError{Path: path, Record: -1, Reason: "no records"}
	}
	records := make([]models.QARecord, 0, len(raw))
	for i, obj := range raw {
		if obj == nil {
			return nil, &MalformedDataError{Path: path, Record: i, Reason: "record is not an object"}
		}
		rec, err := toRecord(obj)
		if err != nil {
			return nil, &MalformedDataError{Path: path, Record: i, Reason: err.Error()}
		}
		if err := validate.Struct(rec); err != nil {
			return nil, &MalformedDataError{Path: path, Record: i, Reason: "missing question or answer", Err: err}
		}
		records = append(records, rec)
	}
	return records, nil
}

func toRecord(obj map[string]any) (models.QARecord, error) {
	var rec models.QARecord
	question, err := pick(obj, FieldQuestion, FieldInstruction)
	if err != nil {
		return rec, err
	}
	answer, err := pick(obj, FieldAnswer, FieldOutput)
	if err != nil {
		return rec, err
	}
	rec.Question = strings.TrimSpace(question)
	rec.Answer = strings.TrimSpace(answer)
	for k, v := range obj {
		if k == FieldQuestion || k == FieldAnswer {
			continue
		}
		if (k == FieldInstruction && obj[FieldQuestion] == nil) || (k == FieldOutput && obj[FieldAnswer] == nil) {
			continue
		}
		if rec.Metadata == nil {
			rec.Metadata = make(map[string]any)
		}
		if nested, ok := v.(map[string]any); ok && k == FieldMetadata {
			for mk, mv := range nested {
				// Top-level keys win over the nested object.
				if _, taken := obj[mk]; !taken {
					rec.Metadata[mk] = mv
				}
			}
			continue
		}
		rec.Metadata[k] = v
	}
	return rec, nil
}

// pick returns the string under key, or under alias when key is absent.
func pick(obj map[string]any, key, alias string) (string, error) {
	name := key
	v, ok := obj[key]
	if !ok || v == nil {
		name = alias
		v, ok = obj[alias]
	}
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("field %q must be a string, got %T", name, v)
	}
	return s, nil
}
