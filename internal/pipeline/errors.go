package pipeline

import "github.com/rotisserie/eris"

// Failure classes surfaced to callers. Each wraps the underlying cause so
// transports can map them to a status without parsing messages.
var (
	// ErrInvalidInput covers malformed URLs and hosts the address guard
	// refuses to fetch.
	ErrInvalidInput = eris.New("pipeline: invalid input")

	// ErrNetwork covers navigation and render failures: the page could not
	// be loaded within bounds.
	ErrNetwork = eris.New("pipeline: page unreachable")

	// ErrOracle covers scoring failures, including unparseable model output.
	ErrOracle = eris.New("pipeline: oracle failure")

	// ErrNoCredits means the user has no audit credits remaining.
	ErrNoCredits = eris.New("pipeline: no credits remaining")

	// ErrUnknownUser means the request named a user with no profile.
	ErrUnknownUser = eris.New("pipeline: unknown user")
)

// classify wraps cause so that eris.Is(result, class) holds.
func classify(class, cause error) error {
	return eris.Wrap(class, cause.Error())
}
