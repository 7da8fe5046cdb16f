package ksched

import "testing"

func TestSampleIncreasesAverageUnderLoad(t *testing.T) {
	var l LoadAverages
	before1, before5, before15 := l.Get()
	l.Sample(10)
	after1, after5, after15 := l.Get()

	if after1 <= before1 {
		t.Errorf("1-min average did not increase: %d -> %d", before1, after1)
	}
	if after5 <= before5 {
		t.Errorf("5-min average did not increase: %d -> %d", before5, after5)
	}
	if after15 <= before15 {
		t.Errorf("15-min average did not increase: %d -> %d", before15, after15)
	}
}

func TestSampleDecaysTowardZeroWithNoLoad(t *testing.T) {
	var l LoadAverages
	l.Sample(20)
	peak, _, _ := l.Get()

	for i := 0; i < 50; i++ {
		l.Sample(0)
	}
	settled, _, _ := l.Get()

	if settled >= peak {
		t.Errorf("1-min average did not decay with zero load: peak=%d settled=%d", peak, settled)
	}
}
