package reading

import (
	"bytes"
	"encoding/csv"
	"errors"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/xuri/excelize/v2"
)

var _ = Describe("Export", func() {
	var (
		readings []*Reading
		now      time.Time
	)

	BeforeEach(func() {
		now = time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)
		readings = []*Reading{
			{ID: "1", MeterNumber: "AM051V", Value: 4451, CreatedAt: time.Date(2024, 5, 19, 8, 30, 15, 0, time.UTC)},
			{ID: "2", MeterNumber: "BK002V", Value: 12, CreatedAt: time.Date(2024, 5, 18, 22, 5, 0, 0, time.UTC)},
		}
	})

	Describe("BuildCSV", func() {
		It("should start with a byte order mark", func() {
			data, err := BuildCSV(readings)
			Expect(err).NotTo(HaveOccurred())
			Expect(data[:3]).To(Equal([]byte{0xEF, 0xBB, 0xBF}))
		})

		It("should write a header and one row per reading", func() {
			data, err := BuildCSV(readings)
			Expect(err).NotTo(HaveOccurred())

			rows, err := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, []byte("\ufeff")))).ReadAll()
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(HaveLen(3))
			Expect(rows[0]).To(Equal([]string{"Date", "Time", "Meter number", "Reading (kWh)"}))
			Expect(rows[1]).To(Equal([]string{"2024-05-19", "08:30:15", "AM051V", "4451"}))
		})
	})

	Describe("BuildXLSX", func() {
		It("should produce a workbook readable by excelize", func() {
			data, err := BuildXLSX(readings)
			Expect(err).NotTo(HaveOccurred())

			f, err := excelize.OpenReader(bytes.NewReader(data))
			Expect(err).NotTo(HaveOccurred())
			defer f.Close()

			rows, err := f.GetRows("readings")
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(HaveLen(3))
			Expect(rows[1][2]).To(Equal("AM051V"))
			Expect(rows[2][3]).To(Equal("12"))
		})

		It("should keep every cell of an oversized meter number row", func() {
			readings[0].MeterNumber = strings.Repeat("M", excelize.TotalCellChars+100)

			data, err := BuildXLSX(readings)
			Expect(err).NotTo(HaveOccurred())

			f, err := excelize.OpenReader(bytes.NewReader(data))
			Expect(err).NotTo(HaveOccurred())
			defer f.Close()

			meter, err := f.GetCellValue("readings", "C2")
			Expect(err).NotTo(HaveOccurred())
			Expect(meter).To(HaveLen(excelize.TotalCellChars))
			value, err := f.GetCellValue("readings", "D2")
			Expect(err).NotTo(HaveOccurred())
			Expect(value).To(Equal("4451"))
		})
	})

	Describe("BuildPDF", func() {
		It("should produce a PDF document", func() {
			data, err := BuildPDF(readings, now)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data[:4])).To(Equal("%PDF"))
		})
	})

	Describe("BuildExport", func() {
		It("should name the file after the export date", func() {
			export, err := BuildExport(readings, FormatXLSX, now)
			Expect(err).NotTo(HaveOccurred())
			Expect(export.Filename).To(Equal("meter_readings_2024-05-20.xlsx"))
			Expect(export.ContentType).To(Equal("application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"))
		})

		It("should reject an unknown format", func() {
			_, err := BuildExport(readings, "odt", now)
			var validationErr *ValidationError
			Expect(errors.As(err, &validationErr)).To(BeTrue())
		})

		It("should render an empty export", func() {
			export, err := BuildExport(nil, FormatCSV, now)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(export.Data)).To(ContainSubstring("Meter number"))
		})
	})
})
