package repository

import (
	"os"
	"testing"

	"github.com/hanapgigs/escrow-engine/internal/testutil/dblock"
)

func TestMain(m *testing.M) {
	if os.Getenv("DATABASE_URL") == "" {
		os.Exit(m.Run())
	}
	release := dblock.Acquire()
	code := m.Run()
	release()
	os.Exit(code)
}
