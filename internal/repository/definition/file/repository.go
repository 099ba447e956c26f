package file

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/sharetube/watchsync/internal/repository/definition"
	"github.com/sharetube/watchsync/pkg/validator"
	"github.com/spf13/viper"
	"golang.org/x/exp/maps"
)

// repo serves room definitions read from files matching a glob. The room
// name is the file name without its extension.
type repo struct {
	glob        string
	validate    *validator.Validator
	logger      *slog.Logger
	definitions map[string]definition.Definition
	mu          sync.RWMutex
}

func NewRepo(glob string, logger *slog.Logger) (*repo, error) {
	r := &repo{
		glob:        glob,
		validate:    validator.NewValidator(),
		logger:      logger,
		definitions: make(map[string]definition.Definition),
	}

	if err := r.Reload(); err != nil {
		return nil, err
	}

	return r, nil
}

func (r *repo) Reload() error {
	funcName := "definition.file.Reload"

	definitions := make(map[string]definition.Definition)
	if r.glob != "" {
		paths, err := filepath.Glob(r.glob)
		if err != nil {
			return fmt.Errorf("invalid room glob %q: %w", r.glob, err)
		}

		for _, path := range paths {
			name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

			def, err := r.load(path)
			if err != nil {
				return err
			}

			r.logger.Info(funcName, "room", name, "url", def.URL, "subs", len(def.Subs))
			definitions[name] = def
		}
	}

	r.mu.Lock()
	r.definitions = definitions
	r.mu.Unlock()

	r.logger.Info(funcName, "glob", r.glob, "rooms", len(definitions))
	return nil
}

func (r *repo) load(path string) (definition.Definition, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return definition.Definition{}, fmt.Errorf("failed to read room definition %s: %w", path, err)
	}

	var def definition.Definition
	if err := v.Unmarshal(&def); err != nil {
		return definition.Definition{}, fmt.Errorf("failed to decode room definition %s: %w", path, err)
	}

	if err := r.validate.Check(def); err != nil {
		return definition.Definition{}, fmt.Errorf("invalid room definition %s: %w", path, err)
	}

	return def, nil
}

func (r *repo) Get(ctx context.Context, name string) (definition.Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.definitions[name]
	if !ok {
		return definition.Definition{}, definition.ErrDefinitionNotFound
	}

	return def, nil
}

func (r *repo) List(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	names := maps.Keys(r.definitions)
	r.mu.RUnlock()

	slices.Sort(names)

	return names, nil
}
