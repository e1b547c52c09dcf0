package maintenance

import (
	"io"
	"net/http"

	"github.com/yourusername/maintenance-gate/internal/auth"
)

// maxBodyBytes bounds how much of a request body the gate reads
const maxBodyBytes = 1 << 20

// VerdictKind is the outcome class of Gate.Authorize
type VerdictKind int

const (
	VerdictRejected VerdictKind = iota
	VerdictPreflight
	VerdictAuthorized
)

// Verdict is the gate's decision. Failure is set only for VerdictRejected.
type Verdict struct {
	Kind    VerdictKind
	Failure *Failure
}

// Gate checks the transport method and the three authorization fields in a
// fixed order, stopping at the first failure.
type Gate struct {
	operation string
	verifier  auth.Verifier
}

// NewGate creates a gate for operation backed by verifier
func NewGate(operation string, verifier auth.Verifier) *Gate {
	return &Gate{operation: operation, verifier: verifier}
}

// Authorize decides whether the request may run. The body is only read once
// the method has been accepted.
func (g *Gate) Authorize(method string, body io.Reader) Verdict {
	switch method {
	case http.MethodOptions:
		return Verdict{Kind: VerdictPreflight}
	case http.MethodPost:
	default:
		return reject(CodeMethodNotSupported)
	}

	var data []byte
	if body != nil {
		// A read error leaves a truncated body, which then fails to parse
		data, _ = io.ReadAll(io.LimitReader(body, maxBodyBytes))
	}
	req := ParseRequest(data)

	if req.Operation != g.operation {
		return reject(CodeInvalidOperation)
	}
	if !req.Authorized {
		return reject(CodeUnauthorized)
	}
	if g.verifier == nil || !g.verifier.Verify(req.Token) {
		return reject(CodeInvalidToken)
	}

	return Verdict{Kind: VerdictAuthorized}
}

func reject(code Code) Verdict {
	return Verdict{Kind: VerdictRejected, Failure: newFailure(code)}
}
