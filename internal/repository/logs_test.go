package repository

import (
	"context"
	"testing"
	"time"

	"github.com/vladimiradmaev/wellnest/internal/domain"
	"github.com/vladimiradmaev/wellnest/internal/store"
)

func glucoseAt(owner string, ts time.Time, v float64) domain.Record {
	return domain.NewRecord(owner, ts, &domain.Glucose{Value: v})
}

func TestPutSameSecondOverwrites(t *testing.T) {
	ctx := context.Background()
	repo := NewLogRepository(store.NewMemory())
	ts := time.Date(2024, 4, 1, 9, 15, 30, 0, time.UTC)

	first := glucoseAt("u1", ts, 110)
	second := glucoseAt("u1", ts.Add(400*time.Millisecond), 145)
	if first.ID != second.ID {
		t.Fatalf("ids differ within one second: %s %s", first.ID, second.ID)
	}
	if err := repo.Put(ctx, first); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := repo.Put(ctx, second); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := repo.Get(ctx, domain.KindGlucose, first.ID)
	if err != nil || got == nil {
		t.Fatalf("get: %v %v", got, err)
	}
	g, _ := got.Glucose()
	if g.Value != 145 {
		t.Fatalf("glucose = %v, want second write", g.Value)
	}
}

func TestGetMissingReturnsNil(t *testing.T) {
	got, err := NewLogRepository(store.NewMemory()).Get(context.Background(), domain.KindInsulin, "insulin_x_20240101_000000")
	if err != nil || got != nil {
		t.Fatalf("got %v, %v; want nil, nil", got, err)
	}
}

func TestQueryRangeOrderAndInclusiveBounds(t *testing.T) {
	ctx := context.Background()
	repo := NewLogRepository(store.NewMemory())
	t1 := time.Date(2024, 4, 1, 8, 0, 0, 0, time.UTC)
	t2, t3 := t1.Add(5*time.Minute), t1.Add(10*time.Minute)

	recs := []domain.Record{
		glucoseAt("u1", t2, 2),
		glucoseAt("u1", t1, 1),
		glucoseAt("u1", t3, 3),
		glucoseAt("u1", t3.Add(time.Second), 4),
		glucoseAt("u2", t2, 99),
	}
	if err := repo.BatchUpsert(ctx, recs); err != nil {
		t.Fatalf("batch: %v", err)
	}

	got, err := repo.QueryRange(ctx, domain.KindGlucose, "u1", t1, t3)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	want := []float64{3, 2, 1}
	if len(got) != len(want) {
		t.Fatalf("got %d records, want %d", len(got), len(want))
	}
	for i, v := range want {
		g, _ := got[i].Glucose()
		if g.Value != v {
			t.Fatalf("got[%d] = %v, want %v", i, g.Value, v)
		}
	}
}

func TestQueryRangeEmpty(t *testing.T) {
	repo := NewLogRepository(store.NewMemory())
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	got, err := repo.QueryRange(context.Background(), domain.KindActivity, "nobody", from, from.Add(time.Hour))
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("want empty slice, got %#v", got)
	}
}

func TestBatchUpsertMixedKindsIdempotent(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	repo := NewLogRepository(mem)
	ts := time.Date(2024, 4, 2, 12, 0, 0, 0, time.UTC)
	batch := []domain.Record{
		glucoseAt("u1", ts, 120),
		domain.NewRecord("u1", ts, &domain.Insulin{Bolus: 4}),
		glucoseAt("u1", ts, 130),
	}

	for i := 0; i < 2; i++ {
		if err := repo.BatchUpsert(ctx, batch); err != nil {
			t.Fatalf("batch %d: %v", i, err)
		}
	}

	cgm, _ := repo.QueryRange(ctx, domain.KindGlucose, "u1", ts, ts)
	ins, _ := repo.QueryRange(ctx, domain.KindInsulin, "u1", ts, ts)
	if len(cgm) != 1 || len(ins) != 1 {
		t.Fatalf("got %d glucose and %d insulin records", len(cgm), len(ins))
	}
	if g, _ := cgm[0].Glucose(); g.Value != 130 {
		t.Fatalf("duplicate id kept %v, want last write", g.Value)
	}
}

func TestLatestMatchingPagesBackward(t *testing.T) {
	ctx := context.Background()
	repo := NewLogRepository(store.NewMemory())
	base := time.Date(2024, 4, 3, 0, 0, 0, 0, time.UTC)

	var recs []domain.Record
	recs = append(recs, domain.NewRecord("u1", base, &domain.Insulin{Bolus: 6}))
	for i := 1; i <= 25; i++ {
		recs = append(recs, domain.NewRecord("u1", base.Add(time.Duration(i)*time.Minute), &domain.Insulin{CarbInput: 20}))
	}
	if err := repo.BatchUpsert(ctx, recs); err != nil {
		t.Fatalf("batch: %v", err)
	}

	hasBolus := func(r domain.Record) bool {
		ins, ok := r.Insulin()
		return ok && ins.Bolus > 0
	}

	got, err := repo.LatestMatching(ctx, domain.KindInsulin, "u1", hasBolus, 10, 5)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if got == nil || !got.Timestamp.Equal(base) {
		t.Fatalf("got %+v, want record at %v", got, base)
	}

	got, err = repo.LatestMatching(ctx, domain.KindInsulin, "u1", hasBolus, 10, 2)
	if err != nil || got != nil {
		t.Fatalf("with 2 pages got %+v, %v; want nil", got, err)
	}
}

func TestUpsertNutritionSameInstant(t *testing.T) {
	ctx := context.Background()
	repo := NewLogRepository(store.NewMemory())
	at := time.Date(2024, 4, 4, 13, 0, 0, 0, time.UTC)

	first, created, err := repo.UpsertNutrition(ctx, "u1", at, 40, "rice")
	if err != nil || !created {
		t.Fatalf("first upsert: created=%v err=%v", created, err)
	}
	if first.CreatedAt.IsZero() || first.UpdatedAt.IsZero() {
		t.Fatalf("created record lacks store timestamps: %+v", first)
	}
	second, created, err := repo.UpsertNutrition(ctx, "u1", at, 55, "rice and dal")
	if err != nil || created {
		t.Fatalf("second upsert: created=%v err=%v", created, err)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Fatalf("created_at changed from %v to %v", first.CreatedAt, second.CreatedAt)
	}

	recs, err := repo.QueryRange(ctx, domain.KindInsulin, "u1", at, at)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("got %d records, want 1", len(recs))
	}
	ins, _ := recs[0].Insulin()
	if ins.FoodIntake != "rice and dal" || ins.CarbInput != 55 {
		t.Fatalf("stored %+v, want second call values", ins)
	}
}

func TestUpsertNutritionKeepsDose(t *testing.T) {
	ctx := context.Background()
	repo := NewLogRepository(store.NewMemory())
	at := time.Date(2024, 4, 4, 20, 0, 0, 0, time.UTC)
	basal := 0.8
	if err := repo.Put(ctx, domain.NewRecord("u1", at, &domain.Insulin{Bolus: 5, BasalRate: &basal})); err != nil {
		t.Fatalf("put: %v", err)
	}

	rec, _, err := repo.UpsertNutrition(ctx, "u1", at, 30, "")
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	ins, _ := rec.Insulin()
	if ins.Bolus != 5 || ins.BasalRate == nil || *ins.BasalRate != 0.8 {
		t.Fatalf("dose fields lost: %+v", ins)
	}
	if ins.FoodIntake != NoFoodRecorded {
		t.Fatalf("food = %q, want placeholder", ins.FoodIntake)
	}
}

func TestDeleteRange(t *testing.T) {
	ctx := context.Background()
	repo := NewLogRepository(store.NewMemory())
	base := time.Date(2024, 4, 5, 0, 0, 0, 0, time.UTC)
	var recs []domain.Record
	for i := 0; i < 5; i++ {
		recs = append(recs, domain.NewRecord("u1", base.Add(time.Duration(i)*time.Hour), &domain.Activity{Steps: i * 100}))
	}
	if err := repo.BatchUpsert(ctx, recs); err != nil {
		t.Fatalf("batch: %v", err)
	}

	n, err := repo.DeleteRange(ctx, domain.KindActivity, "u1", base.Add(time.Hour), base.Add(3*time.Hour))
	if err != nil || n != 3 {
		t.Fatalf("deleted %d, err %v; want 3", n, err)
	}
	left, _ := repo.QueryRange(ctx, domain.KindActivity, "u1", base, base.Add(24*time.Hour))
	if len(left) != 2 {
		t.Fatalf("left %d records, want 2", len(left))
	}
}

func TestTrackingMarkKeepsOtherFields(t *testing.T) {
	ctx := context.Background()
	repo := NewTrackingRepository(store.NewMemory())
	a := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	b := a.Add(time.Hour)

	if err := repo.Mark(ctx, "u1", domain.LastTrackedCGM, a); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if err := repo.Mark(ctx, "u1", domain.LastTrackedFitbit, b); err != nil {
		t.Fatalf("mark: %v", err)
	}
	got, err := repo.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.LastTrackedCGM == nil || !got.LastTrackedCGM.Equal(a) {
		t.Fatalf("cgm watermark = %v", got.LastTrackedCGM)
	}
	if got.LastTrackedFitbit == nil || !got.LastTrackedFitbit.Equal(b) {
		t.Fatalf("fitbit watermark = %v", got.LastTrackedFitbit)
	}
	if err := repo.Mark(ctx, "u1", domain.TrackingField("bogus"), a); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(store.NewMemory())

	u, err := repo.GetOrCreate(ctx, "tg7", 7, "Asha")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	u.FitbitPermission = true
	u.FitbitAccessToken = "old"
	if err := repo.Save(ctx, u); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := repo.GetOrCreate(ctx, "tg8", 8, "Ravi"); err != nil {
		t.Fatalf("create: %v", err)
	}

	exp := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := repo.UpdateFitbitCredentials(ctx, "tg7", "new", "refresh", exp); err != nil {
		t.Fatalf("update: %v", err)
	}

	users, err := repo.ListFitbitUsers(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(users) != 1 || users[0].ID != "tg7" || users[0].FitbitAccessToken != "new" {
		t.Fatalf("users = %+v", users)
	}
	again, _ := repo.GetOrCreate(ctx, "tg7", 7, "ignored")
	if again.Name != "Asha" {
		t.Fatalf("existing user overwritten: %+v", again)
	}
}
