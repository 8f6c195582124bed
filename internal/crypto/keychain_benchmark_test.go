package crypto

import "testing"

func BenchmarkDeriveWrappingKey(b *testing.B) {
	salt := make([]byte, scryptSaltLen)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := deriveWrappingKey("correct horse battery staple", salt); err != nil {
			b.Fatal(err)
		}
	}
}
