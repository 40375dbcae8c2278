package core

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"
)

const (
	DefaultMaxPortAttempts = 1000
	maxTCPPort             = 65535
)

// PortAllocator hands random free ports from [Min, Max] to a start
// routine, retrying when the port is taken or the start routine fails.
type PortAllocator struct {
	Min         int
	Max         int
	MaxAttempts int
	pick        func(min int, max int) int
	isFree      func(port int) error
}

func NewPortAllocator(minPort int, maxPort int) (PortAllocator, error) {
	if minPort < 1 || maxPort > maxTCPPort {
		return PortAllocator{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("invalid port range: [%d, %d] is outside [1, %d]", minPort, maxPort, maxTCPPort))
	}
	if minPort > maxPort {
		return PortAllocator{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("invalid port range: min port %d is greater than max port %d", minPort, maxPort))
	}
	return PortAllocator{
		Min:         minPort,
		Max:         maxPort,
		MaxAttempts: DefaultMaxPortAttempts,
		pick:        randomPort,
		isFree:      checkPortFree,
	}, nil
}

// Allocate calls start with a free port until it succeeds and returns
// that port.
func (a PortAllocator) Allocate(ctx context.Context, start func(ctx context.Context, port int) error) (int, error) {
	attempts := a.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxPortAttempts
	}
	pick := a.pick
	if pick == nil {
		pick = randomPort
	}
	isFree := a.isFree
	if isFree == nil {
		isFree = checkPortFree
	}
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		port := pick(a.Min, a.Max)
		if err := isFree(port); err != nil {
			log.Ctx(ctx).Debug().Int("port", port).Err(err).Msg("port is not available")
			continue
		}
		if err := start(ctx, port); err != nil {
			log.Ctx(ctx).Debug().Int("port", port).Err(err).Msg("failed to start on port, retrying")
			continue
		}
		log.Ctx(ctx).Debug().Int("port", port).Int("attempt", attempt+1).Msg("allocated port")
		return port, nil
	}
	return 0, errbuilder.New().
		WithCode(errbuilder.CodeFailedPrecondition).
		WithMsg(fmt.Sprintf("could not find available port in range %d:%d", a.Min, a.Max))
}

func randomPort(minPort int, maxPort int) int {
	return minPort + rand.IntN(maxPort-minPort+1)
}

func checkPortFree(port int) error {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return err
	}
	return listener.Close()
}
