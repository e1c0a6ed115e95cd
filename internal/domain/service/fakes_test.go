package service

import (
	"context"
	"errors"

	"github.com/beevik/etree"

	"github.com/oscar-duarte/sifen-worker/internal/domain/entity"
	"github.com/oscar-duarte/sifen-worker/internal/infrastructure/sifen/credential"
	"github.com/oscar-duarte/sifen-worker/internal/infrastructure/sifen/qr"
	"github.com/oscar-duarte/sifen-worker/internal/infrastructure/sifen/signer"
	"github.com/oscar-duarte/sifen-worker/pkg/logger"
)

type noopLogger struct{}

func (noopLogger) Info(string, ...logger.Field)  {}
func (noopLogger) Error(string, ...logger.Field) {}
func (noopLogger) Warn(string, ...logger.Field)  {}

// fakeStore is an in-memory ports.Store holding a single emission and header
// (the id argument is ignored), recording every UpdateEmission call and the
// last UpdateHeader call it receives.
type fakeStore struct {
	emission *entity.EmissionRecord
	header   *entity.DocumentHeader

	loadEmissionErr error
	loadHeaderErr   error
	updateErr       error

	emissionUpdates []map[string]interface{}
	headerCode      *int
	headerDesc      *string
}

func (f *fakeStore) LoadEmission(ctx context.Context, id entity.FiscalDocumentId) (*entity.EmissionRecord, error) {
	if f.loadEmissionErr != nil {
		return nil, f.loadEmissionErr
	}
	return f.emission, nil
}

func (f *fakeStore) LoadHeader(ctx context.Context, id entity.FiscalDocumentId) (*entity.DocumentHeader, error) {
	if f.loadHeaderErr != nil {
		return nil, f.loadHeaderErr
	}
	return f.header, nil
}

func (f *fakeStore) UpdateEmission(ctx context.Context, id entity.FiscalDocumentId, fields map[string]interface{}) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.emissionUpdates = append(f.emissionUpdates, fields)
	return nil
}

func (f *fakeStore) UpdateHeader(ctx context.Context, id entity.FiscalDocumentId, code *int, description *string) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.headerCode = code
	f.headerDesc = description
	return nil
}

// fakeScheduler records SchedulePoll calls.
type fakeScheduler struct {
	err      error
	calls    []int
	attempts []int
}

func (f *fakeScheduler) SchedulePoll(ctx context.Context, id entity.FiscalDocumentId, attempts int) error {
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, int(id))
	f.attempts = append(f.attempts, attempts)
	return nil
}

// fakeSOAPClient returns canned response bodies for each operation.
type fakeSOAPClient struct {
	submitBatchResp  string
	submitBatchErr   error
	queryResp        string
	queryErr         error
	submitEventResp  string
	submitEventErr   error
}

func (f *fakeSOAPClient) SubmitBatch(ctx context.Context, url, zipBase64 string, mat *credential.Material) (string, error) {
	return f.submitBatchResp, f.submitBatchErr
}

func (f *fakeSOAPClient) QueryBatchStatus(ctx context.Context, url, protocol string, mat *credential.Material) (string, error) {
	return f.queryResp, f.queryErr
}

func (f *fakeSOAPClient) SubmitEvent(ctx context.Context, url, eventXML string, mat *credential.Material) (string, error) {
	return f.submitEventResp, f.submitEventErr
}

// fakeMaterializer succeeds with an empty Material unless told to fail.
type fakeMaterializer struct {
	err error
}

func (f *fakeMaterializer) Load(pfxPath, password string) (*credential.Material, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &credential.Material{}, nil
}

func (f *fakeMaterializer) ProvisionMTLSFiles(m *credential.Material) (*credential.MTLSFiles, error) {
	return nil, errors.New("not implemented in fake")
}

// fakeSigner returns a canned signed document containing a <Signature>
// child, as insertQR requires, unless told to fail.
type fakeSigner struct {
	err error
}

func (f *fakeSigner) SignEnveloped(ctx context.Context, unsignedXML []byte, mat *credential.Material) (*signer.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	signedXML := []byte(`<DE Id="cdc-test-1"><Signature></Signature></DE>`)
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(signedXML); err != nil {
		return nil, err
	}
	return &signer.Result{
		SignedXML:  signedXML,
		CDC:        "cdc-test-1",
		DigestHex:  "deadbeef",
		SignedTree: doc.Root(),
	}, nil
}

// fakeQRGenerator succeeds with a canned URL unless told to fail.
type fakeQRGenerator struct {
	err error
}

func (f *fakeQRGenerator) BuildURL(fields qr.Fields, cscSecret, baseURL string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "https://ekuatia.set.gov.py/consultas?nVersion=150", nil
}

// fakeValidator always accepts, unless told otherwise.
type fakeValidator struct {
	err error
}

func (f *fakeValidator) Validate(ctx context.Context, xmlData []byte, schemaName string) error {
	return f.err
}
func (f *fakeValidator) ValidateDocument(ctx context.Context, xmlData []byte) error { return f.err }
func (f *fakeValidator) ValidateEvent(ctx context.Context, xmlData []byte) error    { return f.err }
func (f *fakeValidator) DownloadSifenSchemas(ctx context.Context) error             { return nil }

func newTestDispatcher(store *fakeStore, scheduler *fakeScheduler, soap *fakeSOAPClient) *Dispatcher {
	return &Dispatcher{
		Store:         store,
		Scheduler:     scheduler,
		Materializer:  &fakeMaterializer{},
		Signer:        &fakeSigner{},
		QR:            &fakeQRGenerator{},
		CancelBuilder: &fakeCancelBuilder{xml: []byte("<rGesEve/>")},
		SOAPClient:    soap,
		Validator:     &fakeValidator{},
		Endpoints:     Endpoints{MaxPollAttempts: 10},
		Log:           noopLogger{},
	}
}
