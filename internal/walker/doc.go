// Package walker discovers media files in the per-user, per-device
// directory layout produced by sync clients.
package walker
