// Package job defines the tracked analysis unit and the immutable result the
// analysis service attaches to it once the job completes.
package job
