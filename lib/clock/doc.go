// Copyright 2026 The Spool Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time abstraction for testability.
//
// Production code accepts a Clock parameter instead of calling time.Now,
// time.Sleep, or time.After directly. In production, Real() provides the
// standard library behavior. In tests, Fake() provides a deterministic
// clock that advances only when Advance is called.
package clock
