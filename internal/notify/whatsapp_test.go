package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type recordedRequest struct {
	path string
	auth string
	body map[string]any
}

var _ = Describe("WhatsApp", func() {
	var (
		server   *httptest.Server
		wa       *WhatsApp
		mu       sync.Mutex
		requests []recordedRequest
		status   int
		respBody string
	)

	BeforeEach(func() {
		requests = nil
		status = http.StatusOK
		respBody = `{}`

		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := recordedRequest{path: r.URL.Path, auth: r.Header.Get("Authorization")}
			if r.Body != nil {
				var body map[string]any
				json.NewDecoder(r.Body).Decode(&body)
				rec.body = body
			}
			mu.Lock()
			requests = append(requests, rec)
			mu.Unlock()

			w.WriteHeader(status)
			w.Write([]byte(respBody))
		}))

		var err error
		wa, err = NewWhatsApp(server.URL, "test-token", "12345", "v18.0", []string{"+1111", "+2222"})
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		server.Close()
	})

	Describe("NewWhatsApp", func() {
		It("requires a token", func() {
			_, err := NewWhatsApp("", "", "12345", "", nil)
			Expect(err).To(HaveOccurred())
		})

		It("requires a phone number id", func() {
			_, err := NewWhatsApp("", "test-token", "", "", nil)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Send", func() {
		It("posts the Cloud API message body", func() {
			Expect(wa.Send(context.Background(), "+34600000001", "hello")).To(Succeed())

			Expect(requests).To(HaveLen(1))
			Expect(requests[0].path).To(Equal("/v18.0/12345/messages"))
			Expect(requests[0].auth).To(Equal("Bearer test-token"))
			Expect(requests[0].body).To(HaveKeyWithValue("messaging_product", "whatsapp"))
			Expect(requests[0].body).To(HaveKeyWithValue("to", "+34600000001"))
			Expect(requests[0].body["text"]).To(HaveKeyWithValue("body", "hello"))
		})

		It("surfaces API errors", func() {
			status = http.StatusUnauthorized
			err := wa.Send(context.Background(), "+34600000001", "hello")
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("status 401"))
		})
	})

	Describe("NotifyAdmin", func() {
		It("fans out to every admin", func() {
			Expect(wa.NotifyAdmin(context.Background(), "heads up")).To(Succeed())

			Expect(requests).To(HaveLen(2))
			Expect(requests[0].body).To(HaveKeyWithValue("to", "+1111"))
			Expect(requests[1].body).To(HaveKeyWithValue("to", "+2222"))
		})
	})

	Describe("MediaURL", func() {
		It("returns the url from the lookup response", func() {
			respBody = `{"url": "https://cdn.example/media/abc"}`
			url, err := wa.MediaURL(context.Background(), "media-id-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(url).To(Equal("https://cdn.example/media/abc"))
			Expect(requests[0].path).To(Equal("/v18.0/media-id-1"))
		})

		It("rejects a response without a url", func() {
			respBody = `{}`
			_, err := wa.MediaURL(context.Background(), "media-id-1")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Download", func() {
		It("returns the bytes and content type", func() {
			respBody = "raw image bytes"
			data, contentType, err := wa.Download(context.Background(), server.URL+"/media/abc")
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(Equal("raw image bytes"))
			Expect(contentType).To(ContainSubstring("text/plain"))
			Expect(requests[0].auth).To(Equal("Bearer test-token"))
		})

		It("surfaces download failures", func() {
			status = http.StatusNotFound
			_, _, err := wa.Download(context.Background(), server.URL+"/media/abc")
			Expect(err).To(HaveOccurred())
		})
	})
})
