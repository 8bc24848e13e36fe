package app

import (
	"context"
	"errors"

	"ytrelay/internal/credential"
	"ytrelay/internal/server"
)

type Service struct {
	credentials *credential.Manager
	server      *server.Server
	closers     []func() error
}

type ServiceOptions struct {
	Credentials *credential.Manager
	Server      *server.Server
	Closers     []func() error
}

func NewService(opts ServiceOptions) *Service {
	return &Service{
		credentials: opts.Credentials,
		server:      opts.Server,
		closers:     opts.Closers,
	}
}

func (s *Service) Credentials() *credential.Manager {
	return s.credentials
}

func (s *Service) Server() *server.Server {
	return s.server
}

// Run serves HTTP until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	return s.server.Run(ctx)
}

func (s *Service) Close() error {
	var errs []error
	for _, closeFn := range s.closers {
		if err := closeFn(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
