package quest

// Completion derives the quest completion ratio from a state: found objects
// over target objects. It returns 0 when targets are unknown or empty so the
// caller never divides by zero. Recomputed on every read; the inputs already
// live in memory.
func Completion(s State) float64 {
	if len(s.TargetObjects) == 0 {
		return 0
	}
	found := 0
	for _, target := range s.TargetObjects {
		if s.HasFound(target.ID) {
			found++
		}
	}
	return float64(found) / float64(len(s.TargetObjects))
}
