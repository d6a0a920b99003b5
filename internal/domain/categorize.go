package domain

// DisplayCategory is one bucket of a zone's display board.
type DisplayCategory string

const (
	CategoryNew        DisplayCategory = "new"
	CategoryPreparing  DisplayCategory = "preparing"
	CategoryReady      DisplayCategory = "ready"
	CategoryCompleted  DisplayCategory = "completed"
	CategoryHeld       DisplayCategory = "held"
	CategoryReadyForQC DisplayCategory = "ready_for_qc"
)

var kitchenCategories = map[KitchenItemStatus]DisplayCategory{
	ItemReceived:  CategoryNew,
	ItemPreparing: CategoryPreparing,
	ItemReady:     CategoryReady,
	ItemCompleted: CategoryCompleted,
	ItemHeld:      CategoryHeld,
}

// CategorizeZone buckets a zone snapshot into display categories. Kitchen
// zones partition on each order's overall status. QC zones surface every
// order that is not completed as ready for review, in-progress orders
// included, so the QC station sees work coming before it is fully ready.
// The function is deterministic: orders keep their arrival order within
// each bucket.
func CategorizeZone(data ZoneData) map[DisplayCategory][]ZoneOrder {
	buckets := make(map[DisplayCategory][]ZoneOrder)

	if data.ZoneType == ZoneQC {
		for _, order := range data.Orders {
			if order.Status == ItemCompleted {
				buckets[CategoryCompleted] = append(buckets[CategoryCompleted], order)
			} else {
				buckets[CategoryReadyForQC] = append(buckets[CategoryReadyForQC], order)
			}
		}
		return buckets
	}

	for _, order := range data.Orders {
		category, ok := kitchenCategories[order.OverallStatus]
		if !ok {
			category = CategoryNew
		}
		buckets[category] = append(buckets[category], order)
	}
	return buckets
}
