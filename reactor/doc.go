// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor provides the per-I/O-thread event reactor each zctx
// thread polls: one epoll instance on Linux, registered by raw fd with an
// opaque user-data pointer (spec §4.8).
package reactor
