package task

// SetOverallMax sets the overall progress maximum.
func (t *Task) SetOverallMax(max int) {
	t.updateProgress(func(p *Progress) {
		p.OverallMax = max
		if p.OverallProgress > max {
			p.OverallProgress = max
		}
	})
}

// SetOverallStep sets the increment used by StepOverallProgress.
func (t *Task) SetOverallStep(step int) {
	t.updateProgress(func(p *Progress) { p.OverallStep = step })
}

// SetOverallMessage sets the overall progress message.
func (t *Task) SetOverallMessage(msg string) {
	t.updateProgress(func(p *Progress) { p.OverallMessage = msg })
}

// StepOverallProgress increments the overall progress by the overall step, it never
// goes past the overall maximum.
func (t *Task) StepOverallProgress() {
	t.updateProgress(func(p *Progress) {
		p.OverallProgress = min(p.OverallProgress+p.OverallStep, p.OverallMax)
	})
}

// SetItemMax sets the item progress maximum and restarts the item progress.
func (t *Task) SetItemMax(max int) {
	t.updateProgress(func(p *Progress) {
		p.ItemMax = max
		p.ItemProgress = 0
	})
}

// SetItemMessage sets the item progress message.
func (t *Task) SetItemMessage(msg string) {
	t.updateProgress(func(p *Progress) { p.ItemMessage = msg })
}

// StepItemProgress increments the item progress by one, it never goes past the item maximum.
func (t *Task) StepItemProgress() {
	t.updateProgress(func(p *Progress) {
		p.ItemProgress = min(p.ItemProgress+1, p.ItemMax)
	})
}

// SetItemProgress sets the item progress, clamped between zero and the item maximum.
func (t *Task) SetItemProgress(n int) {
	t.updateProgress(func(p *Progress) {
		p.ItemProgress = max(0, min(n, p.ItemMax))
	})
}

// Progress returns a snapshot of the progress.
func (t *Task) Progress() Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.progress
}

func (t *Task) updateProgress(update func(p *Progress)) {
	t.mu.Lock()
	before := t.progress
	update(&t.progress)
	if t.progress == before {
		t.mu.Unlock()
		return
	}

	notify := t.progSubs.bind(t.progress)
	t.emitMu.Lock()
	t.mu.Unlock()
	notify()
	t.emitMu.Unlock()
}
