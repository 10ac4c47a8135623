// Package build turns a source tree into dispatches. The runner discovers
// source paths, feeds each one through the pipeline on a bounded worker pool,
// and collects a per-path report. One failing path never stops the others.
package build
