package provider

import (
	"context"

	"github.com/shaneholloman/automaker/internal/domain"
)

// ErrorStream returns a stream that carries exactly one terminal error
// message. Used when an execution fails before anything is spawned,
// such as a missing CLI or absent credential.
func ErrorStream(kind domain.ErrorKind, message string) *domain.MessageStream {
	stream := domain.NewMessageStream()
	go func() {
		defer stream.Finish()
		stream.Send(context.Background(), domain.NewErrorMessage(kind, message))
	}()
	return stream
}
