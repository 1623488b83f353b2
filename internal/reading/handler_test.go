package reading

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Handler", func() {
	var (
		store   Store
		handler *Handler
		ctx     context.Context
	)

	do := func(req events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
		resp, err := handler.Handle(ctx, req)
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	decode := func(resp events.APIGatewayProxyResponse) map[string]any {
		var body map[string]any
		Expect(json.Unmarshal([]byte(resp.Body), &body)).To(Succeed())
		return body
	}

	post := func(body string) events.APIGatewayProxyResponse {
		return do(events.APIGatewayProxyRequest{HTTPMethod: http.MethodPost, Path: "/api/readings", Body: body})
	}

	list := func(query map[string]string) []any {
		resp := do(events.APIGatewayProxyRequest{HTTPMethod: http.MethodGet, Path: "/api/readings", QueryStringParameters: query})
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		return decode(resp)["readings"].([]any)
	}

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		store, err = NewSQLiteStore(filepath.Join(GinkgoT().TempDir(), "readings.db"))
		Expect(err).NotTo(HaveOccurred())
		clock := &mockTimeSource{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
		handler = NewHandler(NewServiceWithDeps(store, &mockIDGenerator{}, clock))
	})

	AfterEach(func() {
		store.Close()
	})

	Describe("POST", func() {
		It("should create a reading and return 201", func() {
			resp := post(`{"meterNumber":"AM051V","reading":4451}`)
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))
			Expect(resp.Headers).To(HaveKeyWithValue("Access-Control-Allow-Origin", "*"))
			Expect(resp.Headers).To(HaveKeyWithValue("Content-Type", "application/json"))

			reading := decode(resp)["reading"].(map[string]any)
			Expect(reading["id"]).To(Equal("reading-1"))
			Expect(reading["meterNumber"]).To(Equal("AM051V"))
			Expect(reading["reading"]).To(BeNumerically("==", 4451))
			Expect(reading).To(HaveKeyWithValue("photoUrl", BeNil()))
			Expect(reading["timestamp"]).To(Equal("2024-03-01T09:01:00Z"))
			Expect(reading).NotTo(HaveKey("userId"))
		})

		It("should reject a missing meter number", func() {
			resp := post(`{"reading":100}`)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(decode(resp)["error"]).To(Equal("meterNumber and reading are required"))
		})

		It("should accept a zero reading", func() {
			resp := post(`{"meterNumber":"AM051V","reading":0}`)
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))
		})

		It("should treat an empty body as missing fields", func() {
			resp := post("")
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(decode(resp)["error"]).To(Equal("meterNumber and reading are required"))
		})

		It("should reject malformed JSON", func() {
			resp := post(`{"meterNumber":`)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(decode(resp)["error"]).To(Equal("Invalid JSON"))
		})

		It("should decode a base64 body", func() {
			resp := do(events.APIGatewayProxyRequest{
				HTTPMethod:      http.MethodPost,
				Body:            base64.StdEncoding.EncodeToString([]byte(`{"meterNumber":"BK123V","reading":7}`)),
				IsBase64Encoded: true,
			})
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))
		})
	})

	Describe("GET", func() {
		BeforeEach(func() {
			post(`{"meterNumber":"AM051V","reading":100}`)
			post(`{"meterNumber":"AM051V","reading":200}`)
			post(`{"meterNumber":"BK002V","reading":5,"userId":"alice"}`)
		})

		It("should list the default user's readings newest first", func() {
			readings := list(nil)
			Expect(readings).To(HaveLen(2))
			Expect(readings[0].(map[string]any)["reading"]).To(BeNumerically("==", 200))
			Expect(readings[1].(map[string]any)["reading"]).To(BeNumerically("==", 100))
		})

		It("should scope the list to userId", func() {
			readings := list(map[string]string{"userId": "alice"})
			Expect(readings).To(HaveLen(1))
			Expect(readings[0].(map[string]any)["meterNumber"]).To(Equal("BK002V"))
		})

		It("should return an empty list for an unknown user", func() {
			Expect(list(map[string]string{"userId": "bob"})).To(BeEmpty())
		})
	})

	Describe("PUT", func() {
		It("should update an existing reading", func() {
			post(`{"meterNumber":"AM051V","reading":100}`)
			resp := do(events.APIGatewayProxyRequest{
				HTTPMethod: http.MethodPut,
				Body:       `{"id":"reading-1","meterNumber":"AM052V","reading":150}`,
			})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			reading := decode(resp)["reading"].(map[string]any)
			Expect(reading["meterNumber"]).To(Equal("AM052V"))
			Expect(reading["reading"]).To(BeNumerically("==", 150))
			Expect(reading["timestamp"]).To(Equal("2024-03-01T09:01:00Z"))
		})

		It("should return 404 for an unknown id", func() {
			resp := do(events.APIGatewayProxyRequest{
				HTTPMethod: http.MethodPut,
				Body:       `{"id":"nope","meterNumber":"AM052V","reading":150}`,
			})
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			Expect(decode(resp)["error"]).To(Equal("Reading not found"))
		})

		It("should reject a missing id", func() {
			resp := do(events.APIGatewayProxyRequest{
				HTTPMethod: http.MethodPut,
				Body:       `{"meterNumber":"AM052V","reading":150}`,
			})
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(decode(resp)["error"]).To(Equal("id, meterNumber and reading are required"))
		})
	})

	Describe("DELETE", func() {
		It("should delete the reading", func() {
			post(`{"meterNumber":"AM051V","reading":100}`)
			resp := do(events.APIGatewayProxyRequest{
				HTTPMethod:            http.MethodDelete,
				QueryStringParameters: map[string]string{"id": "reading-1"},
			})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(decode(resp)).To(HaveKeyWithValue("success", true))
			Expect(list(nil)).To(BeEmpty())
		})

		It("should succeed for an unknown id", func() {
			resp := do(events.APIGatewayProxyRequest{
				HTTPMethod:            http.MethodDelete,
				QueryStringParameters: map[string]string{"id": "nope"},
			})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})

		It("should require an id", func() {
			resp := do(events.APIGatewayProxyRequest{HTTPMethod: http.MethodDelete})
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(decode(resp)["error"]).To(Equal("id is required"))
		})
	})

	Describe("OPTIONS", func() {
		It("should answer the preflight", func() {
			resp := do(events.APIGatewayProxyRequest{HTTPMethod: http.MethodOptions})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Body).To(BeEmpty())
			Expect(resp.Headers).To(HaveKeyWithValue("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS"))
			Expect(resp.Headers).To(HaveKeyWithValue("Access-Control-Allow-Headers", "Content-Type, X-User-Id"))
			Expect(resp.Headers).To(HaveKeyWithValue("Access-Control-Max-Age", "86400"))
		})
	})

	It("should reject other methods with 405", func() {
		resp := do(events.APIGatewayProxyRequest{HTTPMethod: http.MethodPatch})
		Expect(resp.StatusCode).To(Equal(http.StatusMethodNotAllowed))
		Expect(decode(resp)["error"]).To(Equal("Method not allowed"))
	})

	Describe("export", func() {
		BeforeEach(func() {
			post(`{"meterNumber":"AM051V","reading":100}`)
		})

		It("should default to a base64 CSV download", func() {
			resp := do(events.APIGatewayProxyRequest{HTTPMethod: http.MethodGet, Path: "/api/readings/export"})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.IsBase64Encoded).To(BeTrue())
			Expect(resp.Headers["Content-Type"]).To(HavePrefix("text/csv"))
			Expect(resp.Headers["Content-Disposition"]).To(ContainSubstring("meter_readings_"))

			data, err := base64.StdEncoding.DecodeString(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(ContainSubstring("AM051V"))
		})

		It("should render a PDF on request", func() {
			resp := do(events.APIGatewayProxyRequest{
				HTTPMethod:            http.MethodGet,
				Path:                  "/api/readings/export",
				QueryStringParameters: map[string]string{"format": "PDF"},
			})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Headers["Content-Type"]).To(Equal("application/pdf"))
		})

		It("should reject unknown formats", func() {
			resp := do(events.APIGatewayProxyRequest{
				HTTPMethod:            http.MethodGet,
				Path:                  "/api/readings/export",
				QueryStringParameters: map[string]string{"format": "doc"},
			})
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(decode(resp)["error"]).To(Equal("unsupported export format"))
		})
	})

	Describe("stats", func() {
		It("should summarise readings per meter", func() {
			post(`{"meterNumber":"AM051V","reading":100}`)
			post(`{"meterNumber":"AM051V","reading":160}`)

			resp := do(events.APIGatewayProxyRequest{HTTPMethod: http.MethodGet, Path: "/api/readings/stats"})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var stats Statistics
			Expect(json.Unmarshal([]byte(resp.Body), &stats)).To(Succeed())
			Expect(stats.TotalReadings).To(Equal(2))
			Expect(stats.Meters).To(HaveLen(1))
			Expect(stats.Meters[0].TotalConsumption).To(Equal(int64(60)))
		})
	})

	When("storage is not configured", func() {
		BeforeEach(func() {
			handler = NewHandler(NewService(UnconfiguredStore{}))
		})

		It("should report the missing configuration with 500", func() {
			resp := do(events.APIGatewayProxyRequest{HTTPMethod: http.MethodGet})
			Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
			Expect(decode(resp)["error"]).To(Equal("DATABASE_URL not found"))
		})

		It("should still validate before touching storage", func() {
			resp := post(`{}`)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	When("storage fails unexpectedly", func() {
		BeforeEach(func() {
			failing := newMockStore()
			failing.listErr = errors.New("connection reset")
			handler = NewHandler(NewService(failing))
		})

		It("should echo the storage error text with 500", func() {
			resp := do(events.APIGatewayProxyRequest{HTTPMethod: http.MethodGet})
			Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
			Expect(decode(resp)["error"]).To(Equal("connection reset"))
			Expect(strings.Count(resp.Body, "error")).To(Equal(1))
		})
	})

	When("a write fails", func() {
		BeforeEach(func() {
			failing := newMockStore()
			failing.createErr = errors.New(`duplicate key value violates unique constraint "readings_pkey"`)
			handler = NewHandler(NewService(failing))
		})

		It("should echo the driver message without the operation prefix", func() {
			resp := post(`{"meterNumber":"AM051V","reading":4451}`)
			Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
			Expect(decode(resp)["error"]).To(Equal(`duplicate key value violates unique constraint "readings_pkey"`))
		})
	})

	When("userId is present but empty", func() {
		var store *mockStore

		BeforeEach(func() {
			store = newMockStore()
			handler = NewHandler(NewService(store))
		})

		It("should list the default user's readings", func() {
			resp := do(events.APIGatewayProxyRequest{
				HTTPMethod:            http.MethodGet,
				QueryStringParameters: map[string]string{"userId": ""},
			})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(store.listedFor).To(Equal(DefaultUserID))
		})
	})
})
