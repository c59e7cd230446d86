package pool

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/provideplatform/datapool/fault"
	"github.com/provideplatform/datapool/payment"
	"github.com/provideplatform/datapool/proof"
)

const testCreator = "buyer"

type recorder struct {
	events []*Event
}

func (r *recorder) Dispatch(evt *Event) error {
	r.events = append(r.events, evt)
	return nil
}

func (r *recorder) types() []string {
	types := make([]string, 0)
	for _, evt := range r.events {
		types = append(types, evt.Type)
	}
	return types
}

type fixture struct {
	pool     *Pool
	ledger   *payment.Ledger
	proofs   *proof.MemoryRegistry
	recorder *recorder
}

func ageRequirement() *proof.Requirement {
	return &proof.Requirement{Name: "age", Type: proof.TypeAgeVerification, Required: true}
}

func nationalityRequirement() *proof.Requirement {
	return &proof.Requirement{Name: "nationality", Type: proof.TypeNationalityVerification, Required: true}
}

func fixtureFactory(t *testing.T, proofs *proof.MemoryRegistry, budget, price uint64, requirements ...*proof.Requirement) *fixture {
	if proofs == nil {
		proofs = proof.NewMemoryRegistry()
	}

	f := &fixture{
		ledger:   payment.NewLedger(),
		proofs:   proofs,
		recorder: &recorder{},
	}

	p, err := New(&Config{
		Name:         "survey",
		Description:  "anonymous survey responses",
		DataType:     "survey",
		Requirements: requirements,
		PricePerUnit: price,
		TotalBudget:  budget,
		Creator:      testCreator,
		Deadline:     time.Now().Add(time.Hour),
	}, proofs, f.ledger, f.recorder)
	require.NoError(t, err)

	f.pool = p
	return f
}

// assertConserved checks total - remaining == price * units paid
func assertConserved(t *testing.T, f *fixture) {
	p := f.pool
	assert.Equal(t, p.TotalBudget-p.RemainingBudget(), p.PricePerUnit*p.UnitsCollected())
	assert.Equal(t, f.ledger.Paid(), p.TotalBudget-p.RemainingBudget())
	assert.LessOrEqual(t, p.RemainingBudget(), p.TotalBudget)
}

func TestNewValidatesConfig(t *testing.T) {
	proofs := proof.NewMemoryRegistry()
	ledger := payment.NewLedger()

	_, err := New(nil, proofs, ledger, nil)
	assert.True(t, fault.IsErrInvalid(err))

	cases := []*Config{
		{Name: "", PricePerUnit: 10, Creator: testCreator},
		{Name: "pool", PricePerUnit: 0, Creator: testCreator},
		{Name: "pool", PricePerUnit: 10, Creator: ""},
		{Name: "pool", PricePerUnit: 10, Creator: testCreator, Requirements: []*proof.Requirement{ageRequirement(), ageRequirement()}},
		{Name: "pool", PricePerUnit: 10, Creator: testCreator, Requirements: []*proof.Requirement{{Name: "retina", Type: "retina_scan"}}},
		{Name: "pool", PricePerUnit: 10, Creator: testCreator, Deadline: time.Now().Add(-time.Minute)},
	}
	for i, cfg := range cases {
		_, err := New(cfg, proofs, ledger, nil)
		assert.True(t, errors.Is(err, fault.ErrInvalidConfig), "case %d", i)
	}

	_, err = New(&Config{Name: "pool", PricePerUnit: 10, Creator: testCreator}, nil, ledger, nil)
	assert.True(t, fault.IsErrInvalid(err))
}

func TestNewInitializesBudget(t *testing.T) {
	f := fixtureFactory(t, nil, 100, 10, ageRequirement())
	details := f.pool.Details()

	assert.True(t, details.Active)
	assert.Equal(t, uint64(100), details.TotalBudget)
	assert.Equal(t, uint64(100), details.RemainingBudget)
	assert.Equal(t, uint64(0), details.UnitsCollected)
	assert.Equal(t, testCreator, details.Creator)
	assert.Len(t, details.Requirements, 1)
}

func TestDetailsRequirementsAreDetached(t *testing.T) {
	f := fixtureFactory(t, nil, 100, 10, ageRequirement(), nationalityRequirement())
	ctx := context.Background()

	details := f.pool.Details()
	details.Requirements[0].Required = false
	details.Requirements[1].Name = "passport"

	assert.True(t, f.pool.Requirements[0].Required)
	assert.Equal(t, "nationality", f.pool.Requirements[1].Name)

	// completion still waits on both requirements
	require.NoError(t, f.pool.Join(ctx, "alice"))
	receipt, err := f.pool.SubmitProof(ctx, "alice", "nationality", "N")
	require.NoError(t, err)
	assert.False(t, receipt.FullyVerified)
}

func TestNewNormalizesRequirementTypes(t *testing.T) {
	f := fixtureFactory(t, nil, 100, 10, &proof.Requirement{Name: "age", Type: "Age-Verification", Required: true})
	assert.Equal(t, proof.TypeAgeVerification, f.pool.Requirements[0].Type)
}

func TestJoin(t *testing.T) {
	f := fixtureFactory(t, nil, 100, 10, ageRequirement())
	ctx := context.Background()

	assert.Equal(t, StateNotJoined, f.pool.SellerState("alice"))
	require.NoError(t, f.pool.Join(ctx, "alice"))
	assert.Equal(t, StateJoined, f.pool.SellerState("alice"))
	assert.Equal(t, fault.ErrAlreadyJoined, f.pool.Join(ctx, "alice"))
	assert.True(t, fault.IsErrInvalid(f.pool.Join(ctx, "")))

	require.NoError(t, f.pool.Join(ctx, "bob"))
	assert.Equal(t, []string{"alice", "bob"}, f.pool.Joined())
	assert.Equal(t, []string{EventSellerJoined, EventSellerJoined}, f.recorder.types())
}

func TestSubmitProofSettlesOnFullVerification(t *testing.T) {
	f := fixtureFactory(t, nil, 100, 10, ageRequirement())
	ctx := context.Background()

	require.NoError(t, f.pool.Join(ctx, "alice"))
	receipt, err := f.pool.SubmitProof(ctx, "alice", "age", "X")
	require.NoError(t, err)

	assert.True(t, receipt.FullyVerified)
	require.NotNil(t, receipt.Settlement)
	assert.Equal(t, SettlementPaid, receipt.Settlement.Outcome)
	assert.Equal(t, uint64(10), receipt.Settlement.Amount)
	assert.Equal(t, uint64(90), receipt.Settlement.Remaining)

	assert.Equal(t, uint64(90), f.pool.RemainingBudget())
	assert.Equal(t, uint64(1), f.pool.UnitsCollected())
	assert.Equal(t, uint64(10), f.ledger.BalanceOf("alice"))
	assert.Equal(t, StateFullyVerified, f.pool.SellerState("alice"))
	assert.Equal(t, []string{"alice"}, f.pool.Verified())
	assert.True(t, f.proofs.Contains(receipt.Handle))

	s, err := f.pool.Seller("alice")
	require.NoError(t, err)
	assert.True(t, s.Verified)
	assert.True(t, s.FullyVerified)
	assert.True(t, s.Paid)
	assert.Equal(t, VerifiedByProofs, s.VerifiedBy)

	assert.Equal(t, []string{
		EventSellerJoined,
		EventProofSubmitted,
		EventSellerFullyVerified,
		EventSettlementPaid,
	}, f.recorder.types())
	assertConserved(t, f)
}

func TestResubmittedProofIsRejected(t *testing.T) {
	f := fixtureFactory(t, nil, 100, 10, ageRequirement(), nationalityRequirement())
	ctx := context.Background()

	require.NoError(t, f.pool.Join(ctx, "alice"))
	_, err := f.pool.SubmitProof(ctx, "alice", "age", "X")
	require.NoError(t, err)
	assert.Equal(t, StatePartiallyVerified, f.pool.SellerState("alice"))

	_, err = f.pool.SubmitProof(ctx, "alice", "age", "Y")
	assert.Equal(t, fault.ErrDuplicateSubmission, err)

	// the oracle entry point follows the same ledger
	_, err = f.pool.SubmitOracleProof(ctx, "alice", "age", "Z")
	assert.Equal(t, fault.ErrDuplicateSubmission, err)

	assert.Equal(t, 1, f.proofs.Size())
	assert.Equal(t, uint64(100), f.pool.RemainingBudget())
}

func TestResubmissionAfterFullVerificationIsDuplicate(t *testing.T) {
	f := fixtureFactory(t, nil, 100, 10, ageRequirement())
	ctx := context.Background()

	require.NoError(t, f.pool.Join(ctx, "alice"))
	_, err := f.pool.SubmitProof(ctx, "alice", "age", "X")
	require.NoError(t, err)
	assert.Equal(t, StateFullyVerified, f.pool.SellerState("alice"))

	_, err = f.pool.SubmitProof(ctx, "alice", "age", "Y")
	assert.Equal(t, fault.ErrDuplicateSubmission, err)

	_, err = f.pool.SubmitOracleProof(ctx, "alice", "age", "X")
	assert.Equal(t, fault.ErrDuplicateSubmission, err)

	assert.Equal(t, uint64(90), f.pool.RemainingBudget())
	assert.Equal(t, uint64(10), f.ledger.BalanceOf("alice"))
	assert.Equal(t, 1, f.proofs.Size())
}

func TestNewProofAfterOverrideIsInvalidState(t *testing.T) {
	f := fixtureFactory(t, nil, 100, 10, ageRequirement())
	ctx := context.Background()

	require.NoError(t, f.pool.Join(ctx, "alice"))
	_, err := f.pool.Verify(ctx, testCreator, "alice")
	require.NoError(t, err)

	_, err = f.pool.SubmitProof(ctx, "alice", "age", "X")
	assert.Equal(t, fault.ErrAlreadyFullyVerified, err)
	assert.True(t, errors.Is(err, fault.ErrInvalidState))
	assert.Equal(t, 0, f.proofs.Size())
	assert.Equal(t, uint64(90), f.pool.RemainingBudget())
}

func TestConsumedHandleIsRejected(t *testing.T) {
	f := fixtureFactory(t, nil, 100, 10, ageRequirement())
	ctx := context.Background()

	require.NoError(t, f.pool.Join(ctx, "alice"))
	require.NoError(t, f.pool.Join(ctx, "bob"))

	// bob's attestation was already consumed elsewhere in the deployment
	handle := proof.DeriveHandle("bob", "age", "X", f.pool.ID)
	require.NoError(t, f.proofs.Reserve(handle))
	require.NoError(t, f.proofs.Commit(handle))

	_, err := f.pool.SubmitProof(ctx, "bob", "age", "X")
	assert.Equal(t, fault.ErrProofAlreadyConsumed, err)
	assert.Equal(t, StateJoined, f.pool.SellerState("bob"))

	_, ok := f.pool.ProofStatus("bob", "age")
	assert.False(t, ok)
	assert.Equal(t, uint64(100), f.pool.RemainingBudget())
}

func TestHandleReservedByConcurrentOperationIsRejected(t *testing.T) {
	proofs := proof.NewMemoryRegistry()
	f := fixtureFactory(t, proofs, 100, 10, ageRequirement())
	ctx := context.Background()

	require.NoError(t, f.pool.Join(ctx, "alice"))
	handle := proof.DeriveHandle("alice", "age", "X", f.pool.ID)
	require.NoError(t, proofs.Reserve(handle))

	_, err := f.pool.SubmitProof(ctx, "alice", "age", "X")
	assert.Equal(t, fault.ErrProofAlreadyConsumed, err)
}

func TestBudgetExhaustedSkipsSettlement(t *testing.T) {
	f := fixtureFactory(t, nil, 5, 10, ageRequirement())
	ctx := context.Background()

	require.NoError(t, f.pool.Join(ctx, "alice"))
	receipt, err := f.pool.SubmitProof(ctx, "alice", "age", "X")
	require.NoError(t, err)

	assert.True(t, receipt.FullyVerified)
	require.NotNil(t, receipt.Settlement)
	assert.Equal(t, SettlementBudgetExhausted, receipt.Settlement.Outcome)
	assert.Equal(t, uint64(0), receipt.Settlement.Amount)

	assert.Equal(t, StateFullyVerified, f.pool.SellerState("alice"))
	assert.Equal(t, uint64(5), f.pool.RemainingBudget())
	assert.Equal(t, uint64(0), f.ledger.BalanceOf("alice"))

	s, _ := f.pool.Seller("alice")
	assert.False(t, s.Paid)

	assert.Contains(t, f.recorder.types(), EventSettlementBudgetExhausted)
	assert.NotContains(t, f.recorder.types(), EventSettlementPaid)
	assertConserved(t, f)
}

func TestRegisterDataRequiresVerificationAndGrantsAccess(t *testing.T) {
	f := fixtureFactory(t, nil, 100, 10, ageRequirement())
	ctx := context.Background()

	require.NoError(t, f.pool.Join(ctx, "alice"))

	_, err := f.pool.RegisterData(ctx, "alice", "bafy-content", "condition")
	assert.True(t, errors.Is(err, fault.ErrInvalidState))

	_, err = f.pool.SubmitProof(ctx, "alice", "age", "X")
	require.NoError(t, err)

	receipt, err := f.pool.RegisterData(ctx, "alice", "bafy-content", "condition")
	require.NoError(t, err)
	assert.True(t, receipt.AccessGranted)

	data, err := f.pool.Data("alice")
	require.NoError(t, err)
	assert.True(t, data.Encrypted)
	assert.True(t, data.AccessTransferred)
	assert.Equal(t, "condition", data.AccessCondition)
	assert.Equal(t, []string{"bafy-content"}, f.pool.AccessibleContent(testCreator))

	_, err = f.pool.RegisterData(ctx, "alice", "bafy-other", "condition")
	assert.Equal(t, fault.ErrAlreadyStored, err)
	assert.Equal(t, []string{"bafy-content"}, f.pool.AccessibleContent(testCreator))
}

func TestRegisterDataValidation(t *testing.T) {
	f := fixtureFactory(t, nil, 100, 10, ageRequirement())
	ctx := context.Background()

	_, err := f.pool.RegisterData(ctx, "nobody", "bafy-content", "condition")
	assert.Equal(t, fault.ErrNotJoined, err)

	require.NoError(t, f.pool.Join(ctx, "alice"))
	_, err = f.pool.Verify(ctx, testCreator, "alice")
	require.NoError(t, err)

	_, err = f.pool.RegisterData(ctx, "alice", " ", "condition")
	assert.Equal(t, fault.ErrEmptyContentID, err)

	data, err := f.pool.Data("alice")
	assert.Equal(t, fault.ErrDataNotFound, err)
	assert.True(t, fault.IsErrNotFound(err))
	assert.Nil(t, data)

	_, err = f.pool.Data("nobody")
	assert.Equal(t, fault.ErrSellerNotFound, err)
}

func TestUnpaidSellerDataWaitsForTransferAccess(t *testing.T) {
	f := fixtureFactory(t, nil, 5, 10, ageRequirement())
	ctx := context.Background()

	require.NoError(t, f.pool.Join(ctx, "alice"))
	_, err := f.pool.SubmitProof(ctx, "alice", "age", "X")
	require.NoError(t, err)

	receipt, err := f.pool.RegisterData(ctx, "alice", "bafy-content", "condition")
	require.NoError(t, err)
	assert.False(t, receipt.AccessGranted)
	assert.Empty(t, f.pool.AccessibleContent(testCreator))

	_, err = f.pool.TransferAccess(ctx, "alice")
	assert.Equal(t, fault.ErrNotCreator, err)

	granted, err := f.pool.TransferAccess(ctx, testCreator)
	require.NoError(t, err)
	assert.Equal(t, 1, granted)
	assert.Equal(t, []string{"bafy-content"}, f.pool.AccessibleContent(testCreator))

	// the sweep is idempotent per seller
	granted, err = f.pool.TransferAccess(ctx, testCreator)
	require.NoError(t, err)
	assert.Equal(t, 0, granted)
	assert.Equal(t, []string{"bafy-content"}, f.pool.AccessibleContent(testCreator))
}

func TestBulkPaidSellerDataIsGrantedOnRegistration(t *testing.T) {
	f := fixtureFactory(t, nil, 100, 10, ageRequirement())
	ctx := context.Background()

	require.NoError(t, f.pool.Join(ctx, "alice"))
	require.NoError(t, f.pool.Join(ctx, "bob"))

	// bob is paid by the bulk path, then verified and stores data
	result, err := f.pool.SettleAll(ctx, testCreator)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, result.Paid)

	_, err = f.pool.Verify(ctx, testCreator, "bob")
	require.NoError(t, err)
	receipt, err := f.pool.RegisterData(ctx, "bob", "bafy-bob", "condition")
	require.NoError(t, err)
	assert.True(t, receipt.AccessGranted)
}

func TestMultipleRequirements(t *testing.T) {
	optional := &proof.Requirement{Name: "invite", Type: proof.TypeInvitationBased, Required: false}
	f := fixtureFactory(t, nil, 100, 10, ageRequirement(), nationalityRequirement(), optional)
	ctx := context.Background()

	require.NoError(t, f.pool.Join(ctx, "alice"))

	receipt, err := f.pool.SubmitProof(ctx, "alice", "age", "X")
	require.NoError(t, err)
	assert.False(t, receipt.FullyVerified)
	assert.Nil(t, receipt.Settlement)

	receipt, err = f.pool.SubmitOracleProof(ctx, "alice", "invite", "I")
	require.NoError(t, err)
	assert.False(t, receipt.FullyVerified)
	assert.Equal(t, StatePartiallyVerified, f.pool.SellerState("alice"))

	submission, ok := f.pool.ProofStatus("alice", "invite")
	require.True(t, ok)
	assert.Equal(t, proof.SourceOracle, submission.Source)

	receipt, err = f.pool.SubmitOracleProof(ctx, "alice", "nationality", "N")
	require.NoError(t, err)
	assert.True(t, receipt.FullyVerified)
	assert.Equal(t, SettlementPaid, receipt.Settlement.Outcome)
	assert.Equal(t, 3, f.proofs.Size())
	assertConserved(t, f)
}

func TestSubmitProofPreconditions(t *testing.T) {
	f := fixtureFactory(t, nil, 100, 10, ageRequirement())
	ctx := context.Background()

	_, err := f.pool.SubmitProof(ctx, "nobody", "age", "X")
	assert.Equal(t, fault.ErrNotJoined, err)

	require.NoError(t, f.pool.Join(ctx, "alice"))
	_, err = f.pool.SubmitProof(ctx, "alice", "retina", "X")
	assert.Equal(t, fault.ErrUnknownProof, err)

	require.NoError(t, f.pool.Close(ctx, testCreator))
	_, err = f.pool.SubmitProof(ctx, "alice", "age", "X")
	assert.Equal(t, fault.ErrPoolInactive, err)
	assert.Equal(t, fault.ErrPoolInactive, f.pool.Join(ctx, "bob"))

	assert.Equal(t, 0, f.proofs.Size())
}

func TestVerifyOverride(t *testing.T) {
	f := fixtureFactory(t, nil, 100, 10, ageRequirement(), nationalityRequirement())
	ctx := context.Background()

	require.NoError(t, f.pool.Join(ctx, "alice"))

	_, err := f.pool.Verify(ctx, "alice", "alice")
	assert.Equal(t, fault.ErrNotCreator, err)

	_, err = f.pool.Verify(ctx, testCreator, "nobody")
	assert.Equal(t, fault.ErrNotJoined, err)

	receipt, err := f.pool.Verify(ctx, testCreator, "alice")
	require.NoError(t, err)
	assert.True(t, receipt.FullyVerified)
	assert.Equal(t, SettlementPaid, receipt.Settlement.Outcome)

	s, _ := f.pool.Seller("alice")
	assert.Equal(t, VerifiedByOverride, s.VerifiedBy)

	// re-entering the terminal state has no effect
	receipt, err = f.pool.Verify(ctx, testCreator, "alice")
	require.NoError(t, err)
	assert.False(t, receipt.FullyVerified)
	assert.Nil(t, receipt.Settlement)

	assert.Equal(t, uint64(90), f.pool.RemainingBudget())
	assert.Equal(t, []string{"alice"}, f.pool.Verified())
	assertConserved(t, f)
}

func TestProofCompletionThenOverrideSettlesOnce(t *testing.T) {
	f := fixtureFactory(t, nil, 100, 10, ageRequirement())
	ctx := context.Background()

	require.NoError(t, f.pool.Join(ctx, "alice"))
	_, err := f.pool.SubmitProof(ctx, "alice", "age", "X")
	require.NoError(t, err)

	_, err = f.pool.Verify(ctx, testCreator, "alice")
	require.NoError(t, err)

	assert.Equal(t, uint64(10), f.ledger.BalanceOf("alice"))
	assert.Equal(t, uint64(90), f.pool.RemainingBudget())
	assert.Equal(t, []string{"alice"}, f.pool.Verified())
	assertConserved(t, f)
}

func TestTransferFailureRollsBack(t *testing.T) {
	f := fixtureFactory(t, nil, 100, 10, ageRequirement())
	ctx := context.Background()

	require.NoError(t, f.pool.Join(ctx, "mallory"))
	require.NoError(t, f.pool.Join(ctx, "alice"))
	f.ledger.Block("mallory")
	events := len(f.recorder.events)

	_, err := f.pool.SubmitProof(ctx, "mallory", "age", "X")
	assert.True(t, errors.Is(err, fault.ErrTransferFailure))
	assert.True(t, fault.IsErrProcess(err))

	// nothing of the failed operation survives
	assert.Equal(t, uint64(100), f.pool.RemainingBudget())
	assert.Equal(t, uint64(0), f.pool.UnitsCollected())
	assert.Equal(t, StateJoined, f.pool.SellerState("mallory"))
	assert.Empty(t, f.pool.Verified())
	assert.Equal(t, 0, f.proofs.Size())
	assert.Len(t, f.recorder.events, events)

	s, _ := f.pool.Seller("mallory")
	assert.False(t, s.Paid)
	assert.False(t, s.Verified)
	assert.Empty(t, s.Proofs)

	// the pool remains usable, and the same proof may be retried once the transfer succeeds
	_, err = f.pool.SubmitProof(ctx, "alice", "age", "A")
	require.NoError(t, err)

	f.ledger.Unblock("mallory")
	receipt, err := f.pool.SubmitProof(ctx, "mallory", "age", "X")
	require.NoError(t, err)
	assert.Equal(t, SettlementPaid, receipt.Settlement.Outcome)
	assert.Equal(t, uint64(80), f.pool.RemainingBudget())
	assertConserved(t, f)
}

func TestOverrideTransferFailureRollsBack(t *testing.T) {
	f := fixtureFactory(t, nil, 100, 10, ageRequirement())
	ctx := context.Background()

	require.NoError(t, f.pool.Join(ctx, "mallory"))
	f.ledger.Block("mallory")

	_, err := f.pool.Verify(ctx, testCreator, "mallory")
	assert.True(t, errors.Is(err, fault.ErrTransferFailure))
	assert.Equal(t, StateJoined, f.pool.SellerState("mallory"))
	assert.Empty(t, f.pool.Verified())
	assert.Equal(t, uint64(100), f.pool.RemainingBudget())
}

func TestFundsConservedAcrossSellers(t *testing.T) {
	f := fixtureFactory(t, nil, 35, 10, ageRequirement())
	ctx := context.Background()

	sellers := []string{"s0", "s1", "s2", "s3", "s4"}
	for _, seller := range sellers {
		require.NoError(t, f.pool.Join(ctx, seller))
	}

	outcomes := make([]SettlementOutcome, 0)
	for _, seller := range sellers {
		receipt, err := f.pool.SubmitProof(ctx, seller, "age", "value-"+seller)
		require.NoError(t, err)
		outcomes = append(outcomes, receipt.Settlement.Outcome)
		assertConserved(t, f)
	}

	assert.Equal(t, []SettlementOutcome{
		SettlementPaid,
		SettlementPaid,
		SettlementPaid,
		SettlementBudgetExhausted,
		SettlementBudgetExhausted,
	}, outcomes)
	assert.Equal(t, uint64(5), f.pool.RemainingBudget())
	assert.Equal(t, uint64(3), f.pool.UnitsCollected())
	assert.Len(t, f.pool.Verified(), 5)
}

func TestSettleAll(t *testing.T) {
	f := fixtureFactory(t, nil, 35, 10, ageRequirement())
	ctx := context.Background()

	for _, seller := range []string{"s0", "s1", "s2", "s3"} {
		require.NoError(t, f.pool.Join(ctx, seller))
	}
	_, err := f.pool.SubmitProof(ctx, "s0", "age", "X")
	require.NoError(t, err)
	f.ledger.Block("s1")

	_, err = f.pool.SettleAll(ctx, "s0")
	assert.Equal(t, fault.ErrNotCreator, err)

	result, err := f.pool.SettleAll(ctx, testCreator)
	require.NoError(t, err)

	assert.Equal(t, []string{"s0"}, result.Settled)
	assert.Equal(t, []string{"s1"}, result.Failed)
	assert.Equal(t, []string{"s2", "s3"}, result.Paid)
	assert.Empty(t, result.Unfunded)
	assert.Equal(t, uint64(20), result.Amount)
	assert.Equal(t, uint64(5), result.Remaining)

	assert.Equal(t, uint64(0), f.ledger.BalanceOf("s1"))
	assert.Equal(t, uint64(10), f.ledger.BalanceOf("s0"))
	assertConserved(t, f)

	// bulk settlement never drives the budget negative nor pays twice
	f.ledger.Unblock("s1")
	result, err = f.pool.SettleAll(ctx, testCreator)
	require.NoError(t, err)
	assert.Empty(t, result.Paid)
	assert.Equal(t, []string{"s1"}, result.Unfunded)
	assert.Equal(t, uint64(5), f.pool.RemainingBudget())

	// a bulk-paid seller is not paid again when fully verified
	receipt, err := f.pool.SubmitProof(ctx, "s2", "age", "Y")
	require.NoError(t, err)
	assert.Equal(t, SettlementAlreadySettled, receipt.Settlement.Outcome)
	assert.Equal(t, uint64(10), f.ledger.BalanceOf("s2"))
	assertConserved(t, f)
}

func TestClose(t *testing.T) {
	f := fixtureFactory(t, nil, 100, 10, ageRequirement())
	ctx := context.Background()

	assert.Equal(t, fault.ErrNotCreator, f.pool.Close(ctx, "alice"))
	require.NoError(t, f.pool.Close(ctx, testCreator))
	require.NoError(t, f.pool.Close(ctx, testCreator))

	assert.False(t, f.pool.Active())
	assert.Equal(t, []string{EventPoolClosed}, f.recorder.types())

	_, err := f.pool.SettleAll(ctx, testCreator)
	assert.Equal(t, fault.ErrPoolInactive, err)
}

func TestExpired(t *testing.T) {
	f := fixtureFactory(t, nil, 100, 10, ageRequirement())

	assert.False(t, f.pool.Expired(time.Now()))
	assert.True(t, f.pool.Expired(f.pool.Deadline))
	assert.True(t, f.pool.Expired(time.Now().Add(2*time.Hour)))

	p, err := New(&Config{Name: "open", PricePerUnit: 1, Creator: testCreator}, proof.NewMemoryRegistry(), payment.NewLedger(), nil)
	require.NoError(t, err)
	assert.False(t, p.Expired(time.Now().Add(24*365*time.Hour)))
}

func TestSellerCopyIsDetached(t *testing.T) {
	f := fixtureFactory(t, nil, 100, 10, ageRequirement(), nationalityRequirement())
	ctx := context.Background()

	require.NoError(t, f.pool.Join(ctx, "alice"))
	_, err := f.pool.SubmitProof(ctx, "alice", "age", "X")
	require.NoError(t, err)

	s, err := f.pool.Seller("alice")
	require.NoError(t, err)
	assert.Equal(t, StatePartiallyVerified, s.State)

	s.Proofs["age"].Submitted = false
	delete(s.Proofs, "age")

	submission, ok := f.pool.ProofStatus("alice", "age")
	require.True(t, ok)
	assert.True(t, submission.Submitted)

	_, err = f.pool.Seller("nobody")
	assert.Equal(t, fault.ErrSellerNotFound, err)
}

func TestPoolsShareProofRegistry(t *testing.T) {
	proofs := proof.NewMemoryRegistry()
	f0 := fixtureFactory(t, proofs, 100, 10, ageRequirement())
	f1 := fixtureFactory(t, proofs, 100, 10, ageRequirement())
	ctx := context.Background()

	require.NoError(t, f0.pool.Join(ctx, "alice"))
	require.NoError(t, f1.pool.Join(ctx, "alice"))

	r0, err := f0.pool.SubmitProof(ctx, "alice", "age", "X")
	require.NoError(t, err)
	r1, err := f1.pool.SubmitProof(ctx, "alice", "age", "X")
	require.NoError(t, err)

	assert.NotEqual(t, r0.Handle, r1.Handle)
	assert.Equal(t, 2, proofs.Size())
}
