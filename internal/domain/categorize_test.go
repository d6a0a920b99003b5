package domain

import "testing"

func TestOverallItemStatus(t *testing.T) {
	tests := []struct {
		name     string
		statuses []KitchenItemStatus
		want     KitchenItemStatus
	}{
		{"no items", nil, ItemReceived},
		{"all ready", []KitchenItemStatus{ItemReady, ItemReady}, ItemReady},
		{"one preparing", []KitchenItemStatus{ItemReady, ItemPreparing}, ItemPreparing},
		{"all preparing", []KitchenItemStatus{ItemPreparing, ItemPreparing}, ItemPreparing},
		{"all received", []KitchenItemStatus{ItemReceived, ItemReceived}, ItemReceived},
		{"received and ready", []KitchenItemStatus{ItemReceived, ItemReady}, ItemReceived},
		{"held and ready", []KitchenItemStatus{ItemHeld, ItemReady}, ItemReceived},
		{"single ready", []KitchenItemStatus{ItemReady}, ItemReady},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items := make([]KitchenItem, len(tt.statuses))
			for i, s := range tt.statuses {
				items[i] = KitchenItem{ID: i + 1, Status: s}
			}
			if got := OverallItemStatus(items); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestCategorizeZone_Kitchen(t *testing.T) {
	data := ZoneData{
		ZoneType: ZoneKitchen,
		Orders: []ZoneOrder{
			{OrderID: 1, OverallStatus: ItemReceived},
			{OrderID: 2, OverallStatus: ItemPreparing},
			{OrderID: 3, OverallStatus: ItemReady},
			{OrderID: 4, OverallStatus: ItemCompleted},
			{OrderID: 5, OverallStatus: ItemHeld},
			{OrderID: 6, OverallStatus: ItemReceived},
			{OrderID: 7}, // no status yet
		},
	}

	buckets := CategorizeZone(data)

	wantCounts := map[DisplayCategory]int{
		CategoryNew:       3,
		CategoryPreparing: 1,
		CategoryReady:     1,
		CategoryCompleted: 1,
		CategoryHeld:      1,
	}
	for category, want := range wantCounts {
		if got := len(buckets[category]); got != want {
			t.Errorf("%s: got %d orders, want %d", category, got, want)
		}
	}

	// Arrival order preserved inside a bucket.
	newOrders := buckets[CategoryNew]
	if newOrders[0].OrderID != 1 || newOrders[1].OrderID != 6 || newOrders[2].OrderID != 7 {
		t.Errorf("new bucket out of order: %v", newOrders)
	}
}

func TestCategorizeZone_QC(t *testing.T) {
	data := ZoneData{
		ZoneType:    ZoneQC,
		IsQCStation: true,
		Orders: []ZoneOrder{
			{OrderID: 1, Status: ItemReady},
			{OrderID: 2, Status: ItemCompleted},
			{OrderID: 3, Status: ItemPreparing},
		},
	}

	buckets := CategorizeZone(data)

	if got := len(buckets[CategoryReadyForQC]); got != 2 {
		t.Fatalf("ready_for_qc: got %d orders, want 2", got)
	}
	if got := len(buckets[CategoryCompleted]); got != 1 {
		t.Fatalf("completed: got %d orders, want 1", got)
	}
	if buckets[CategoryReadyForQC][0].OrderID != 1 || buckets[CategoryReadyForQC][1].OrderID != 3 {
		t.Errorf("ready_for_qc out of order: %v", buckets[CategoryReadyForQC])
	}
	if len(buckets[CategoryReady]) != 0 {
		t.Errorf("QC zone must not use kitchen buckets: %v", buckets[CategoryReady])
	}
}

func TestCategorizeZone_Empty(t *testing.T) {
	buckets := CategorizeZone(ZoneData{ZoneType: ZoneKitchen})
	if len(buckets) != 0 {
		t.Errorf("expected no buckets for empty zone, got %v", buckets)
	}
}
