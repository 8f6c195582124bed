package codec

import (
	"bytes"
	"testing"
)

func BenchmarkSum(b *testing.B) {
	data := bytes.Repeat([]byte("canonical-object-field"), 64)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Sum(data)
	}
}
