package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/wpliao1997/estimation-validator/internal/models"
	"github.com/wpliao1997/estimation-validator/pkg/logger"
)

// Registry resolves the schema for a document type. Built-in schemas cover
// the known types; YAML files can override or add types. Schemas are loaded
// once and treated as immutable for the duration of any run.
type Registry struct {
	mu      sync.RWMutex
	schemas map[string]*Schema
	logger  logger.Logger
}

func NewRegistry(log logger.Logger) *Registry {
	return &Registry{
		schemas: map[string]*Schema{
			string(models.TypeEstimation): EstimationPaymentSchema(),
			string(models.TypePayment):    EstimationPaymentSchema(),
			string(models.TypeContract):   ContractInfoSchema(),
		},
		logger: log,
	}
}

// Get returns the schema for documentType, falling back to the estimation
// payment schema when the type is unregistered.
func (r *Registry) Get(documentType string) *Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.schemas[documentType]; ok {
		return s
	}
	r.logger.Warn("no schema registered for document type, using default",
		logger.String("documentType", documentType),
	)
	return r.schemas[string(models.TypeEstimation)]
}

// Register adds or replaces the schema for a document type.
func (r *Registry) Register(documentType string, s *Schema) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schemas[documentType] = s
}

// LoadDir registers one schema per *.yaml file in dir; the file name
// (without extension) is the document type. Intended for startup only.
func (r *Registry) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read schema directory: %w", err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || (!strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml")) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("failed to read schema file %s: %w", name, err)
		}
		var s Schema
		if err := yaml.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("failed to parse schema file %s: %w", name, err)
		}
		docType := strings.TrimSuffix(strings.TrimSuffix(name, ".yaml"), ".yml")
		r.Register(docType, &s)
		r.logger.Info("loaded schema",
			logger.String("documentType", docType),
			logger.String("file", name),
		)
	}

	return nil
}
