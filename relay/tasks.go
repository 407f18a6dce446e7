package relay

import (
	"fmt"
	"log/slog"

	"github.com/c360/magicportal/config"
	"github.com/c360/magicportal/errors"
)

// TaskDeps holds what NewTasks needs besides the configuration
type TaskDeps struct {
	Bus     Bus
	Metrics *Metrics
	Logger  *slog.Logger
}

// NewTasks builds one task per configured group for the configured mode.
func NewTasks(cfg *config.Config, deps TaskDeps) ([]Task, error) {
	if cfg == nil {
		return nil, errors.WrapKind(errors.ErrConfiguration, nil, "relay", "NewTasks", "config is required")
	}

	groups := GroupsFromConfig(cfg.MulticastGroups)
	tasks := make([]Task, 0, len(groups))

	switch cfg.Mode {
	case config.ModeForwarder:
		for _, group := range groups {
			tasks = append(tasks, NewForwarder(ForwarderDeps{
				Group:         group,
				Bus:           deps.Bus,
				MaxPacketSize: cfg.MaxPacketSize,
				ReadBuffer:    cfg.Forwarder.ReadBuffer,
				Metrics:       deps.Metrics,
				Logger:        deps.Logger,
			}))
		}
	case config.ModeAgent:
		addressing := Addressing{
			SendAsUnicast: cfg.Agent.SendAsUnicast,
			UnicastAddrs:  cfg.Agent.UnicastAddrs,
		}
		for _, group := range groups {
			tasks = append(tasks, NewAgent(AgentDeps{
				Group:             group,
				Bus:               deps.Bus,
				Addressing:        addressing,
				MulticastTTL:      cfg.Agent.MulticastTTL,
				MulticastLoopback: cfg.Agent.MulticastLoopback,
				Metrics:           deps.Metrics,
				Logger:            deps.Logger,
			}))
		}
	default:
		return nil, errors.WrapKind(errors.ErrConfiguration, nil, "relay", "NewTasks",
			fmt.Sprintf("unknown mode %q", cfg.Mode))
	}

	return tasks, nil
}
