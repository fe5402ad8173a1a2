package registry

import (
	"time"

	"github.com/dukex/flowsmith/pkg/models"
	"github.com/dukex/flowsmith/pkg/nodes/conditional"
	"github.com/dukex/flowsmith/pkg/nodes/httprequest"
	"github.com/dukex/flowsmith/pkg/nodes/log"
	"github.com/dukex/flowsmith/pkg/nodes/mock"
	"github.com/dukex/flowsmith/pkg/nodes/noop"
	"github.com/dukex/flowsmith/pkg/nodes/transform"
	"github.com/dukex/flowsmith/pkg/protocol"
)

// triggerTypes are served by mock connectors: the run input replaces their output.
var triggerTypes = []string{
	models.NodeTypeWebhook,
	models.NodeTypeSchedule,
	models.NodeTypeCron,
	models.NodeTypeManual,
}

// RegisterDefaultConnectors registers all built-in connector factories.
func (r *Registry) RegisterDefaultConnectors() error {
	factories := []protocol.ConnectorFactory{
		noop.NewFactory(),
		log.NewLogNodeFactory(r.logger),
		httprequest.NewHTTPRequestNodeFactory(nil),
		transform.NewTransformNodeFactory(),
		conditional.NewConditionalNodeFactory(),
	}

	for _, nodeType := range triggerTypes {
		factories = append(factories, mock.NewFactory(nodeType, nil))
	}

	for _, f := range factories {
		if err := r.RegisterConnector(f); err != nil {
			return err
		}
	}

	return nil
}

// MockFallback serves unknown node types with their preview output.
func MockFallback(now func() time.Time) func(nodeType string) protocol.ConnectorFactory {
	return func(nodeType string) protocol.ConnectorFactory {
		return mock.NewFactory(nodeType, now)
	}
}
