package central

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// ErrEndpointCreation is returned when the GATT client endpoint pair cannot
// be created. No connect request is sent in that case.
var ErrEndpointCreation = errors.New("failed to create Client pair")

// Connect connects to the peripheral with the given identifier and, on
// success, runs the GATT loop on the new connection and returns its result.
// Nothing is retried.
func (l *Listener) Connect(ctx context.Context, state *ClientState, id string) error {
	client, server, err := l.NewEndpoints(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEndpointCreation, err)
	}
	defer server.Close()

	log := l.Logger.WithField("identifier", id)
	log.Debug("Sending connect request")

	result, err := state.Service().ConnectPeripheral(ctx, id, server)
	if err != nil {
		log.WithError(err).Error("Connect request failed")
		return fmt.Errorf("failed to initiate connect request: %w", err)
	}

	if result.Error != nil {
		fmt.Fprintf(l.Out, "  failed to connect to peripheral: %s\n", result.Error.DescriptionOr("unknown error"))
		log.WithFields(logrus.Fields{
			"code":           result.Error.Code.String(),
			"protocol_error": result.Error.ProtocolErrorCode,
		}).Debug("Peripheral refused connection")
		return result.Error
	}

	fmt.Fprintf(l.Out, "  device connected: %s\n", id)
	return l.GattLoop(ctx, client)
}
