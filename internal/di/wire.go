//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"PatternLab/pkg/config"
	"PatternLab/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(ProviderSet)
	return &server.App{}, nil
}
