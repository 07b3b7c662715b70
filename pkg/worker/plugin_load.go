package worker

import (
	"github.com/amdinfer/inference-server/pkg/errors"
	"github.com/amdinfer/inference-server/pkg/worker/plugin"
)

const factorySymbol = "NewBackend"

// loadPluginFactory opens a *.so from dir named after kind and resolves its
// NewBackend symbol to a Factory.
func loadPluginFactory(dir, kind string) (Factory, error) {
	sym, err := plugin.Open(dir, kind, factorySymbol)
	if err != nil {
		return nil, err
	}
	typed, ok := sym.(*Factory)
	if !ok {
		return nil, errors.New(errors.InvalidArgument, "plugin for kind %q exports %q with the wrong signature", kind, factorySymbol)
	}
	return *typed, nil
}
