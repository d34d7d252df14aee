package counting

import (
	"testing"

	"github.com/jbctechsolutions/counttokens/internal/infrastructure/logging"
	"github.com/jbctechsolutions/counttokens/internal/infrastructure/testutil"
)

// newTestEngine returns an engine over a fake word tokenizer.
func newTestEngine(t *testing.T) (*Engine, *testutil.FakeResolver) {
	t.Helper()
	resolver := testutil.NewFakeResolver()
	return NewEngine(EngineConfig{Resolver: resolver, Logger: logging.Discard()}), resolver
}
