package main

// --- Time-to-Position Mapper ---

const (
	defaultSecondsPerBar = 9
	// leadingExtraBars are reserved above the track when step 1 takes no time.
	leadingExtraBars = 5
	// a remainder of this many seconds or more rounds up to the next bar
	roundUpRemainderSec = 5
)

// barPosition maps elapsed seconds to a bar index: whole bars plus one more
// when the remainder reaches roundUpRemainderSec. Non-positive elapsed time
// is bar 0. secondsPerBar must be positive; callers validate it first.
func barPosition(elapsedSec, secondsPerBar int) int {
	if elapsedSec <= 0 {
		return 0
	}
	if secondsPerBar <= 0 {
		secondsPerBar = defaultSecondsPerBar
	}
	full := elapsedSec / secondsPerBar
	if elapsedSec%secondsPerBar >= roundUpRemainderSec {
		return full + 1
	}
	return full
}

// extraBarsFor is leadingExtraBars when the first step has zero duration.
func extraBarsFor(steps []NormalizedStep) int {
	if len(steps) > 0 && steps[0].DurationSec == 0 {
		return leadingExtraBars
	}
	return 0
}

// totalBars is the bar count of the whole track, extra bars included.
func totalBars(steps []NormalizedStep, secondsPerBar int) int {
	return barPosition(totalDuration(steps), secondsPerBar) + extraBarsFor(steps)
}

// stepBarIndex is the track row a step starts on. A zero-duration first step
// sits on the topmost row.
func stepBarIndex(step NormalizedStep, extraBars, secondsPerBar int) int {
	if step.StepNumber == 1 && step.DurationSec == 0 {
		return 0
	}
	return extraBars + barPosition(step.StartTimeSec, secondsPerBar)
}
