// Package workflow implements the workflow package store: it resolves
// (package, name) pairs to workflow definitions stored under a base URL,
// caching each definition on first load.
package workflow

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/renderflow/renderflow/model"
	"github.com/renderflow/renderflow/model/types"
	"github.com/viant/afs"
	"github.com/viant/afs/url"
)

var extensions = []string{".yaml", ".yml", ".json"}

// Service loads workflow definitions from any afs-supported URL scheme
// (file, mem, s3, ...) and caches them per (package, name).
type Service struct {
	fs      afs.Service
	baseURL string
	mux     sync.RWMutex
	cache   map[string]*model.Workflow
}

// Option customizes the store.
type Option func(*Service)

// WithBaseURL sets the location workflow documents are resolved under.
func WithBaseURL(baseURL string) Option {
	return func(s *Service) {
		s.baseURL = baseURL
	}
}

// WithFS overrides the file service.
func WithFS(fs afs.Service) Option {
	return func(s *Service) {
		s.fs = fs
	}
}

// New creates a workflow store.
func New(options ...Option) *Service {
	ret := &Service{
		fs:    afs.New(),
		cache: make(map[string]*model.Workflow),
	}
	for _, opt := range options {
		opt(ret)
	}
	return ret
}

// Load resolves (pkg, name) to a workflow definition, from cache or the
// backing store. A resolution miss is a WorkflowNotFound failure.
func (s *Service) Load(ctx context.Context, pkg, name string) (*model.Workflow, error) {
	key := cacheKey(pkg, name)
	s.mux.RLock()
	cached, ok := s.cache[key]
	s.mux.RUnlock()
	if ok {
		return cached, nil
	}

	loaded, err := s.load(ctx, pkg, name)
	if err != nil {
		return nil, err
	}
	s.mux.Lock()
	s.cache[key] = loaded
	s.mux.Unlock()
	return loaded, nil
}

// Upsert registers a workflow programmatically, replacing any cached
// definition under the same (pkg, name).
func (s *Service) Upsert(pkg string, workflow *model.Workflow) error {
	if workflow == nil || workflow.Name == "" {
		return types.NewConfigurationError(types.ReasonInvalidParameter, "workflow", "upsert requires a named workflow")
	}
	if err := workflow.Validate(); err != nil {
		return err
	}
	workflow.Package = pkg
	s.mux.Lock()
	s.cache[cacheKey(pkg, workflow.Name)] = workflow
	s.mux.Unlock()
	return nil
}

// Evict drops a cached definition so the next Load re-reads the store.
func (s *Service) Evict(pkg, name string) {
	s.mux.Lock()
	delete(s.cache, cacheKey(pkg, name))
	s.mux.Unlock()
}

func (s *Service) load(ctx context.Context, pkg, name string) (*model.Workflow, error) {
	if s.baseURL == "" {
		return nil, types.NewWorkflowNotFoundError(pkg, name)
	}
	location := ""
	for _, ext := range extensions {
		candidate := url.Join(s.baseURL, path.Join(pkg, name+ext))
		if ok, _ := s.fs.Exists(ctx, candidate); ok {
			location = candidate
			break
		}
	}
	if location == "" {
		return nil, types.NewWorkflowNotFoundError(pkg, name)
	}
	data, err := s.fs.DownloadWithURL(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow %v: %w", location, err)
	}
	workflow, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse workflow %v: %w", location, err)
	}
	if workflow.Name == "" {
		workflow.Name = name
	}
	workflow.Package = pkg
	if err := workflow.Validate(); err != nil {
		return nil, err
	}
	return workflow, nil
}

func cacheKey(pkg, name string) string {
	return strings.TrimPrefix(pkg+"/"+name, "/")
}
