package logging

import "testing"

func TestNewProgressSampler(t *testing.T) {
	tests := []struct {
		name       string
		bucketSize float64
		wantSize   float64
	}{
		{"default bucket size for zero", 0, 5},
		{"default bucket size for negative", -1, 5},
		{"custom bucket size", 10, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewProgressSampler(tt.bucketSize)
			if s.bucketSize != tt.wantSize {
				t.Errorf("bucketSize = %v, want %v", s.bucketSize, tt.wantSize)
			}
			if s.lastBucket != -1 {
				t.Errorf("lastBucket = %d, want -1", s.lastBucket)
			}
		})
	}
}

func TestProgressSamplerNil(t *testing.T) {
	var s *ProgressSampler
	if !s.ShouldLog(50, "pass 1") {
		t.Error("ShouldLog on nil sampler should always return true")
	}
	s.Reset() // should not panic
}

func TestProgressSamplerStageChange(t *testing.T) {
	s := NewProgressSampler(5)

	if !s.ShouldLog(0, "pass 1") {
		t.Error("first stage should log")
	}
	if s.ShouldLog(0, "pass 1") {
		t.Error("same stage and percent should not log again")
	}
	if !s.ShouldLog(0, "pass 2") {
		t.Error("stage change should log")
	}
	if s.lastStage != "pass 2" {
		t.Errorf("lastStage = %q, want pass 2", s.lastStage)
	}
}

func TestProgressSamplerBuckets(t *testing.T) {
	s := NewProgressSampler(5)

	if !s.ShouldLog(0, "encode") {
		t.Error("first observation should log")
	}
	if s.ShouldLog(4.9, "encode") {
		t.Error("within first bucket should not log")
	}
	if !s.ShouldLog(5.1, "encode") {
		t.Error("bucket boundary crossing should log")
	}
	if s.ShouldLog(7, "encode") {
		t.Error("same bucket should not log")
	}
	if !s.ShouldLog(100, "encode") {
		t.Error("completion should log")
	}
}

func TestProgressSamplerReset(t *testing.T) {
	s := NewProgressSampler(5)
	s.ShouldLog(50, "encode")
	s.Reset()
	if !s.ShouldLog(50, "encode") {
		t.Error("reset should allow the same observation to log again")
	}
}
