package bill

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
)

var _ = Describe("Submission", func() {
	var (
		store      *mockStore
		navigator  *navigatorSpy
		validities []string
		session    Session
		submission *Submission
		ctx        context.Context
	)

	rejections := func() []string {
		var out []string
		for _, v := range validities {
			if v != "" {
				out = append(out, v)
			}
		}
		return out
	}

	BeforeEach(func() {
		store = newMockStore()
		navigator = &navigatorSpy{}
		validities = nil
		session = Session{Email: "employee@test.tld", Type: UserEmployee}
		ctx = context.Background()
		submission = NewSubmission(store, session, navigator.navigate,
			WithValidityReporter(func(message string) {
				validities = append(validities, message)
			}),
		)
	})

	Describe("HandleFileSelection", func() {
		var (
			file File
			err  error
		)

		BeforeEach(func() {
			file = File{Name: "image.png", ContentType: "image/png", Data: []byte("file content")}
		})

		JustBeforeEach(func() {
			err = submission.HandleFileSelection(ctx, file)
		})

		When("the file is a png", func() {
			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("uploads the file exactly once", func() {
				Expect(store.uploads).To(HaveLen(1))
			})

			It("scopes the upload to the session email", func() {
				Expect(store.uploads[0].Email).To(Equal("employee@test.tld"))
				Expect(store.uploads[0].File.Data).To(Equal([]byte("file content")))
			})

			It("stores the returned file reference and name", func() {
				fileURL, fileName := submission.Receipt()
				Expect(fileURL).To(Equal("https://localhost:3456/images/test.jpg"))
				Expect(fileName).To(Equal("image.png"))
			})

			It("remembers the created bill id", func() {
				Expect(submission.BillID()).To(Equal("1234"))
			})

			It("moves to the ready state", func() {
				Expect(submission.State()).To(Equal(StateReady))
			})

			It("clears the input validity", func() {
				Expect(validities).To(Equal([]string{""}))
			})
		})

		DescribeTable("accepted extensions",
			func(name string) {
				Expect(submission.HandleFileSelection(ctx, File{Name: name})).To(Succeed())
				Expect(store.uploads).To(HaveLen(2))
			},
			Entry("jpg", "receipt.jpg"),
			Entry("jpeg", "receipt.jpeg"),
			Entry("upper case", "RECEIPT.JPG"),
			Entry("mixed case", "receipt.JpEg"),
		)

		When("the browser sends a fake path", func() {
			BeforeEach(func() {
				file.Name = `C:\fakepath\image.png`
			})

			It("keeps only the base name", func() {
				_, fileName := submission.Receipt()
				Expect(fileName).To(Equal("image.png"))
				Expect(store.uploads[0].File.Name).To(Equal("image.png"))
			})
		})

		When("the extension is not allowed", func() {
			BeforeEach(func() {
				file.Name = "document.pdf"
			})

			It("returns a ValidationError", func() {
				var validationErr *ValidationError
				Expect(errors.As(err, &validationErr)).To(BeTrue())
				Expect(validationErr.Message).To(Equal("Le fichier doit être au format jpg, jpeg ou png"))
			})

			It("does not call the store", func() {
				Expect(store.uploads).To(BeEmpty())
			})

			It("reports exactly one rejection", func() {
				Expect(rejections()).To(Equal([]string{"Le fichier doit être au format jpg, jpeg ou png"}))
			})

			It("leaves the receipt unset", func() {
				fileURL, fileName := submission.Receipt()
				Expect(fileURL).To(BeEmpty())
				Expect(fileName).To(BeEmpty())
				Expect(submission.State()).To(Equal(StateIdle))
			})
		})

		DescribeTable("rejected names",
			func(name string) {
				Expect(submission.HandleFileSelection(ctx, File{Name: name})).To(HaveOccurred())
				Expect(store.uploads).To(HaveLen(1))
			},
			Entry("gif", "image.gif"),
			Entry("no extension", "image"),
			Entry("extension lookalike", "image.png.exe"),
			Entry("trailing dot", "image."),
		)

		When("the upload fails", func() {
			var setupErr error

			BeforeEach(func() {
				setupErr = errors.New("upload rejected")
				store.createErr = setupErr
			})

			It("returns an UploadError wrapping the cause", func() {
				var uploadErr *UploadError
				Expect(errors.As(err, &uploadErr)).To(BeTrue())
				Expect(err).To(MatchError(setupErr))
			})

			It("commits no receipt", func() {
				fileURL, fileName := submission.Receipt()
				Expect(fileURL).To(BeEmpty())
				Expect(fileName).To(BeEmpty())
				Expect(submission.BillID()).To(BeEmpty())
			})

			It("returns to idle", func() {
				Expect(submission.State()).To(Equal(StateIdle))
			})
		})

		When("the store returns no upload result", func() {
			BeforeEach(func() {
				store.uploadResult = nil
			})

			It("returns an UploadError", func() {
				var uploadErr *UploadError
				Expect(errors.As(err, &uploadErr)).To(BeTrue())
				Expect(uploadErr.FileName).To(Equal("image.png"))
			})

			It("commits no receipt and returns to idle", func() {
				fileURL, _ := submission.Receipt()
				Expect(fileURL).To(BeEmpty())
				Expect(submission.State()).To(Equal(StateIdle))
			})
		})

		When("a file is selected again", func() {
			It("uploads again and overwrites the receipt", func() {
				store.uploadResult = &UploadResult{FileURL: "https://localhost:3456/images/second.jpg", Key: "5678"}
				Expect(submission.HandleFileSelection(ctx, File{Name: "second.jpg"})).To(Succeed())

				Expect(store.uploads).To(HaveLen(2))
				fileURL, fileName := submission.Receipt()
				Expect(fileURL).To(Equal("https://localhost:3456/images/second.jpg"))
				Expect(fileName).To(Equal("second.jpg"))
				Expect(submission.BillID()).To(Equal("5678"))
			})
		})

		When("the store returns a suggestion", func() {
			BeforeEach(func() {
				store.uploadResult.Suggestion = &Suggestion{Name: "Vol Paris Montréal", Amount: decimal.NewFromInt(348)}
			})

			It("exposes it", func() {
				Expect(submission.Suggestion()).NotTo(BeNil())
				Expect(submission.Suggestion().Name).To(Equal("Vol Paris Montréal"))
			})
		})
	})

	Describe("HandleSubmit", func() {
		var (
			form Form
			err  error
		)

		BeforeEach(func() {
			form = Form{
				Type:       "Transports",
				Name:       "Vol",
				Date:       "2022-09-01",
				Amount:     "400",
				VAT:        "70",
				Pct:        "20",
				Commentary: "Test",
			}
		})

		JustBeforeEach(func() {
			err = submission.HandleSubmit(ctx, form)
		})

		When("a receipt was uploaded first", func() {
			BeforeEach(func() {
				Expect(submission.HandleFileSelection(ctx, File{Name: "file.png"})).To(Succeed())
			})

			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("updates the bill created by the upload", func() {
				Expect(store.updates).To(HaveLen(1))
				Expect(store.updates[0].id).To(Equal("1234"))
			})

			It("builds the payload from the form", func() {
				b := store.updates[0].bill
				Expect(b.Email).To(Equal("employee@test.tld"))
				Expect(b.Type).To(Equal("Transports"))
				Expect(b.Name).To(Equal("Vol"))
				Expect(b.Date).To(Equal("2022-09-01"))
				Expect(b.Amount.Equal(decimal.NewFromInt(400))).To(BeTrue())
				Expect(b.VAT.Equal(decimal.NewFromInt(70))).To(BeTrue())
				Expect(b.Pct).To(Equal(20))
				Expect(b.Commentary).To(Equal("Test"))
				Expect(b.Status).To(Equal(StatusPending))
			})

			It("carries the receipt reference", func() {
				b := store.updates[0].bill
				Expect(b.FileURL).To(Equal("https://localhost:3456/images/test.jpg"))
				Expect(b.FileName).To(Equal("file.png"))
				Expect(b.HasReceipt()).To(BeTrue())
			})

			It("navigates to the bills list", func() {
				Expect(navigator.routes).To(Equal([]string{RouteBills}))
			})

			It("resets to idle", func() {
				Expect(submission.State()).To(Equal(StateIdle))
				fileURL, _ := submission.Receipt()
				Expect(fileURL).To(BeEmpty())
			})
		})

		When("no receipt was uploaded", func() {
			It("still writes the bill without a receipt", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(store.updates).To(HaveLen(1))
				Expect(store.updates[0].id).To(BeEmpty())
				Expect(store.updates[0].bill.HasReceipt()).To(BeFalse())
			})

			It("navigates to the bills list", func() {
				Expect(navigator.routes).To(Equal([]string{RouteBills}))
			})
		})

		DescribeTable("pct defaults to 20",
			func(raw string) {
				form.Pct = raw
				Expect(submission.HandleSubmit(ctx, form)).To(Succeed())
				Expect(store.updates[len(store.updates)-1].bill.Pct).To(Equal(DefaultPct))
			},
			Entry("empty", ""),
			Entry("blank", "   "),
			Entry("not a number", "abc"),
			Entry("zero", "0"),
		)

		DescribeTable("pct keeps the leading integer",
			func(raw string, expected int) {
				form.Pct = raw
				Expect(submission.HandleSubmit(ctx, form)).To(Succeed())
				Expect(store.updates[len(store.updates)-1].bill.Pct).To(Equal(expected))
			},
			Entry("decimal", "15.5", 15),
			Entry("trailing text", "10%", 10),
			Entry("surrounding spaces", " 5 ", 5),
		)

		When("pct is a valid integer", func() {
			BeforeEach(func() {
				form.Pct = "10"
			})

			It("uses it", func() {
				Expect(store.updates[0].bill.Pct).To(Equal(10))
			})
		})

		When("amount uses a decimal comma", func() {
			BeforeEach(func() {
				form.Amount = "12,50"
			})

			It("parses it", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(store.updates[0].bill.Amount.String()).To(Equal("12.5"))
			})
		})

		When("vat is empty", func() {
			BeforeEach(func() {
				form.VAT = ""
			})

			It("uses zero", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(store.updates[0].bill.VAT.IsZero()).To(BeTrue())
			})
		})

		When("amount is not a number", func() {
			BeforeEach(func() {
				form.Amount = "quatre cents"
			})

			It("returns a ValidationError", func() {
				var validationErr *ValidationError
				Expect(errors.As(err, &validationErr)).To(BeTrue())
				Expect(validationErr.Field).To(Equal("amount"))
			})

			It("does not call the store", func() {
				Expect(store.updates).To(BeEmpty())
			})

			It("does not navigate", func() {
				Expect(navigator.routes).To(BeEmpty())
			})

			It("accepts a corrected submit", func() {
				form.Amount = "400"
				Expect(submission.HandleSubmit(ctx, form)).To(Succeed())
			})
		})

		When("the update fails", func() {
			var setupErr error

			BeforeEach(func() {
				Expect(submission.HandleFileSelection(ctx, File{Name: "file.png"})).To(Succeed())
				setupErr = errors.New("server validation failed")
				store.updateErr = setupErr
			})

			It("returns an UpdateError wrapping the cause", func() {
				var updateErr *UpdateError
				Expect(errors.As(err, &updateErr)).To(BeTrue())
				Expect(updateErr.ID).To(Equal("1234"))
				Expect(err).To(MatchError(setupErr))
			})

			It("does not navigate", func() {
				Expect(navigator.routes).To(BeEmpty())
			})

			It("keeps the uploaded receipt for another attempt", func() {
				Expect(submission.State()).To(Equal(StateReady))
				fileURL, _ := submission.Receipt()
				Expect(fileURL).NotTo(BeEmpty())
			})

			It("does not retry", func() {
				Expect(store.updates).To(HaveLen(1))
			})
		})
	})

	Describe("submitting while the upload is pending", func() {
		var (
			release chan struct{}
			done    chan error
		)

		BeforeEach(func() {
			release = make(chan struct{})
			store.block = release
			done = make(chan error, 1)
			go func() {
				defer GinkgoRecover()
				done <- submission.HandleFileSelection(ctx, File{Name: "image.png"})
			}()
			Eventually(store.uploadCount).Should(Equal(1))
		})

		It("rejects the submit until the upload resolves", func() {
			Expect(submission.State()).To(Equal(StateUploading))
			err := submission.HandleSubmit(ctx, Form{Amount: "10"})
			Expect(err).To(MatchError(ErrUploadInProgress))
			Expect(navigator.routes).To(BeEmpty())

			close(release)
			Eventually(done).Should(Receive(BeNil()))

			Expect(submission.HandleSubmit(ctx, Form{Amount: "10"})).To(Succeed())
			Expect(store.updates[0].bill.HasReceipt()).To(BeTrue())
			Expect(navigator.routes).To(Equal([]string{RouteBills}))
		})

		It("rejects a second file selection as busy", func() {
			err := submission.HandleFileSelection(ctx, File{Name: "other.png"})
			Expect(err).To(MatchError(ErrBusy))

			close(release)
			Eventually(done).Should(Receive(BeNil()))
			Expect(store.uploadCount()).To(Equal(1))
		})
	})
})
