// Stowage - Scheduled Archive Transfer Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stowage

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordPipelineRun(t *testing.T) {
	before := testutil.ToFloat64(PipelineRuns.WithLabelValues("metrics-test", "success"))
	RecordPipelineRun("metrics-test", "", 3*time.Second, nil)
	if got := testutil.ToFloat64(PipelineRuns.WithLabelValues("metrics-test", "success")); got != before+1 {
		t.Errorf("success runs = %v, want %v", got, before+1)
	}
	if testutil.ToFloat64(LastSuccess.WithLabelValues("metrics-test")) == 0 {
		t.Error("expected last success timestamp to be set")
	}

	failBefore := testutil.ToFloat64(PipelineStageFailures.WithLabelValues("metrics-test", "uploading"))
	RecordPipelineRun("metrics-test", "uploading", time.Second, errors.New("boom"))
	if got := testutil.ToFloat64(PipelineStageFailures.WithLabelValues("metrics-test", "uploading")); got != failBefore+1 {
		t.Errorf("stage failures = %v, want %v", got, failBefore+1)
	}
	if got := testutil.ToFloat64(PipelineRuns.WithLabelValues("metrics-test", "failure")); got < 1 {
		t.Errorf("failure runs = %v", got)
	}
}

func TestRecordBytes(t *testing.T) {
	archived := testutil.ToFloat64(BytesArchived.WithLabelValues("bytes-test"))
	uploaded := testutil.ToFloat64(BytesUploaded.WithLabelValues("bytes-test", "nas"))

	RecordArchived("bytes-test", 1024)
	RecordUploaded("bytes-test", "nas", 512)

	if got := testutil.ToFloat64(BytesArchived.WithLabelValues("bytes-test")); got != archived+1024 {
		t.Errorf("archived = %v", got)
	}
	if got := testutil.ToFloat64(BytesUploaded.WithLabelValues("bytes-test", "nas")); got != uploaded+512 {
		t.Errorf("uploaded = %v", got)
	}
}

func TestRecordPrune(t *testing.T) {
	pruned := testutil.ToFloat64(ArchivesPruned.WithLabelValues("prune-test"))
	failed := testutil.ToFloat64(PruneFailures.WithLabelValues("prune-test"))

	RecordPrune("prune-test", 3, 1)
	RecordPrune("prune-test", 0, 0)

	if got := testutil.ToFloat64(ArchivesPruned.WithLabelValues("prune-test")); got != pruned+3 {
		t.Errorf("pruned = %v", got)
	}
	if got := testutil.ToFloat64(PruneFailures.WithLabelValues("prune-test")); got != failed+1 {
		t.Errorf("prune failures = %v", got)
	}
}

func TestUpdateGate(t *testing.T) {
	UpdateGate(4, true)
	if got := testutil.ToFloat64(GateQueueDepth); got != 4 {
		t.Errorf("queue depth = %v", got)
	}
	if got := testutil.ToFloat64(GateRunning); got != 1 {
		t.Errorf("running = %v", got)
	}
	UpdateGate(0, false)
	if testutil.ToFloat64(GateQueueDepth) != 0 || testutil.ToFloat64(GateRunning) != 0 {
		t.Error("gate gauges should reset")
	}
}

func TestRecordAPIRequest(t *testing.T) {
	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/tasks", "200"))
	RecordAPIRequest("GET", "/api/tasks", 200, 5*time.Millisecond)
	if got := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/tasks", "200")); got != before+1 {
		t.Errorf("requests = %v", got)
	}
}

func TestRecordConfigReload(t *testing.T) {
	ok := testutil.ToFloat64(ConfigReloads.WithLabelValues("success"))
	bad := testutil.ToFloat64(ConfigReloads.WithLabelValues("failure"))
	RecordConfigReload(nil)
	RecordConfigReload(errors.New("parse error"))
	if testutil.ToFloat64(ConfigReloads.WithLabelValues("success")) != ok+1 ||
		testutil.ToFloat64(ConfigReloads.WithLabelValues("failure")) != bad+1 {
		t.Error("reload counters not updated")
	}
}
