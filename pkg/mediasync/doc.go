// Package mediasync provides a reusable library for synchronizing the
// lifecycle of media assets (video/audio) across external hosting providers
// with pluggable repository and provider backends.
//
// It exposes a single Service interface whose entry points implement the
// periodic jobs of the synchronization pipeline: dispatching pending uploads,
// polling providers for the status of in-flight jobs, sweeping records marked
// for deletion, and the duplicate-recovery workflow for providers that reject
// re-submitted assets silently. The entry points own no timer state; an
// external scheduler (see cmd/server) invokes them on fixed intervals.
//
// Provider implementations (local encoder, UOLMais, YouTube) live under
// subpackages of provider/. Repositories (memory, Postgres) and blob stores
// for locally encoded output (memory, filesystem, S3) are provided under
// repo/ and storage/.
package mediasync
