package fixsession

import (
	"context"
	"time"

	"github.com/psx-connect/connector/internal/logger"
)

// postLogonStagger is the minimum spacing between the requests the
// orchestration sequence fires after LoggedIn.
const postLogonStagger = 500 * time.Millisecond

// PostLogonRequester is the dispatcher-provided hook for each step of the
// post-logon orchestration sequence.
type PostLogonRequester interface {
	RequestTradingSessionStatus() error
	RequestEquitySecurityList() error
	RequestIndexSecurityList() error
}

// RunPostLogonOrchestration fires TradingSessionStatus, then
// EquitySecurityList, then IndexSecurityList, staggered at least
// postLogonStagger apart. Each send is gated on the machine still being
// LoggedIn - a disconnect mid-sequence aborts the remaining steps rather
// than sending into a dead socket.
func RunPostLogonOrchestration(ctx context.Context, machine *Machine, requester PostLogonRequester) {
	steps := []struct {
		name string
		run  func() error
	}{
		{"TradingSessionStatus", requester.RequestTradingSessionStatus},
		{"EquitySecurityList", requester.RequestEquitySecurityList},
		{"IndexSecurityList", requester.RequestIndexSecurityList},
	}

	for i, step := range steps {
		if machine.State() != StateLoggedIn {
			logger.Warn("post-logon orchestration aborted, session no longer logged in", "step", step.name)
			return
		}
		if err := step.run(); err != nil {
			logger.Warn("post-logon orchestration step failed", "step", step.name, logger.Err(err))
		}
		if i < len(steps)-1 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(postLogonStagger):
			}
		}
	}
}
