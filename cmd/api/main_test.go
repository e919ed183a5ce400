package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"faceattend/internal/attendance"
	"faceattend/internal/faceclient"
	"faceattend/internal/store"
)

func TestWriteTimeoutOutlastsWorkflow(t *testing.T) {
	for _, upstream := range []time.Duration{time.Second, 15 * time.Second, time.Minute} {
		svc := attendance.NewService(store.NewMemoryRepository(), faceclient.Skip{}, nil, nil, upstream)
		// lookup, comparison and write may each use the full upstream timeout
		assert.Greater(t, writeTimeout(svc), 3*upstream, "upstream %s", upstream)
	}
}
