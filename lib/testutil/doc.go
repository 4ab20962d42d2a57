// Copyright 2026 The Spool Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides helpers shared by Spool tests.
//
// The channel helpers wrap select-with-timeout so concurrency tests
// never hang a test binary: a worker that fails to produce or shut
// down fails the test after the timeout instead.
package testutil
