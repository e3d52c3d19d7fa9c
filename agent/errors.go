package agent

import (
	"errors"
	"fmt"

	"github.com/BaSui01/sunyadvisor/types"
)

var (
	// ErrProviderNotSet is returned when an agent has no LLM provider.
	ErrProviderNotSet = types.NewError(types.ErrProviderNotSet, "llm provider not set")

	// ErrEmptyResponse is returned when the model answered with no choices.
	ErrEmptyResponse = types.NewError(types.ErrUpstreamError, "model returned no choices")

	// ErrConfigInvalid wraps agent configuration problems.
	ErrConfigInvalid = errors.New("invalid agent config")
)

// toolLoopExceeded builds the error returned when the model keeps asking
// for tools past the iteration cap.
func toolLoopExceeded(agent string, max int) *types.Error {
	return types.NewError(types.ErrToolLoopExceeded,
		fmt.Sprintf("agent %s exceeded %d tool iterations", agent, max))
}
