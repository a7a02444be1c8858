package predict

// DayPlan is the fixed posting recommendation for one weekday, used when no
// caption is available for a model sweep.
type DayPlan struct {
	Time string `json:"time"`
	Hour int    `json:"hour"`
	Peak string `json:"peak"`
}

var dayPlans = [7]DayPlan{
	{Time: "9:00 AM", Hour: 9, Peak: "Morning professionals"},
	{Time: "10:00 AM", Hour: 10, Peak: "Mid-morning engagement"},
	{Time: "8:00 PM", Hour: 20, Peak: "Evening peak"},
	{Time: "6:30 PM", Hour: 18, Peak: "Evening engagement"},
	{Time: "5:00 PM", Hour: 17, Peak: "Weekend prep"},
	{Time: "12:00 PM", Hour: 12, Peak: "Lunch time scrolling"},
	{Time: "7:00 PM", Hour: 19, Peak: "Evening relaxation"},
}

// PlanFor returns the fixed recommendation for dow (0=Monday). Out-of-range
// days get Monday's plan.
func PlanFor(dow int) DayPlan {
	if dow < 0 || dow > 6 {
		dow = 0
	}
	return dayPlans[dow]
}

// NextRecommended is the day after dow with its fixed posting time.
type NextRecommended struct {
	Day  string `json:"day"`
	Time string `json:"time"`
}

func NextDay(dow int) NextRecommended {
	if dow < 0 || dow > 6 {
		dow = 0
	}
	next := (dow + 1) % 7
	return NextRecommended{Day: DayName(next), Time: dayPlans[next].Time}
}

// ReachEstimation describes expected reach uplift for paid and organic posts.
type ReachEstimation struct {
	Paid    string `json:"paid"`
	NonPaid string `json:"non_paid"`
}

// EstimateReach returns the uplift labels for postType ("paid" or anything
// else, treated as "non_paid").
func EstimateReach(postType string) ReachEstimation {
	if postType == "paid" {
		return ReachEstimation{Paid: "High reach (+40%)", NonPaid: "Moderate reach (+15%)"}
	}
	return ReachEstimation{Paid: "Very High reach (+60%)", NonPaid: "Moderate reach (+18%)"}
}
