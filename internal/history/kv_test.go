package history_test

import (
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/label-scan/internal/history"
)

var _ = Describe("KV backends", func() {
	for _, backend := range []string{history.BackendBolt, history.BackendFile, history.BackendSQLite} {
		backend := backend

		Describe(backend, func() {
			var kv history.KV

			BeforeEach(func() {
				path := filepath.Join(GinkgoT().TempDir(), "history-"+backend)
				var err error
				kv, err = history.Open(backend, path)
				Expect(err).NotTo(HaveOccurred())
			})

			AfterEach(func() {
				if kv != nil {
					kv.Close()
				}
			})

			It("returns ErrNotFound for a missing key", func() {
				_, err := kv.Get("missing")
				Expect(err).To(MatchError(history.ErrNotFound))
			})

			It("stores and replaces values", func() {
				Expect(kv.Put("scan_history", []byte("first"))).To(Succeed())
				Expect(kv.Put("scan_history", []byte("second"))).To(Succeed())

				value, err := kv.Get("scan_history")
				Expect(err).NotTo(HaveOccurred())
				Expect(string(value)).To(Equal("second"))
			})

			It("deletes values", func() {
				Expect(kv.Put("scan_history", []byte("value"))).To(Succeed())
				Expect(kv.Delete("scan_history")).To(Succeed())

				_, err := kv.Get("scan_history")
				Expect(err).To(MatchError(history.ErrNotFound))
			})

			It("ignores deleting a missing key", func() {
				Expect(kv.Delete("missing")).To(Succeed())
			})
		})
	}

	It("rejects unknown backends", func() {
		_, err := history.Open("redis", "")
		Expect(err).To(MatchError(ContainSubstring("unknown history backend")))
	})
})
