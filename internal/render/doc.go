// Package render holds the frame production support loop: the performance
// monitor that times frames, the quality controller that adapts fidelity
// under load, the pacer that sleeps out frame intervals, and the scheduler
// that ties them together on a dedicated goroutine.
package render
