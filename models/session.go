package models

import "time"

// Step enumerates the conversation states. The set is closed: the engine
// dispatches on these values exhaustively.
type Step string

const (
	StepIdle            Step = "idle"
	StepIdentifyChoice  Step = "identify_choice"
	StepIdentifyByPhone Step = "identify_by_phone"
	StepIdentifyByID    Step = "identify_by_id"
	StepCollectID       Step = "collect_id"
	StepCollectName     Step = "collect_name"
	StepPickingBranch   Step = "picking_branch"
	StepHomeMenu        Step = "home_menu"
	StepPickingService  Step = "picking_service"
	StepPickingResource Step = "picking_resource"
	StepPickingDate     Step = "picking_date"
	StepPickingSlot     Step = "picking_slot"
	StepViewingAppts    Step = "viewing_appointments"
	StepCancelingAppt   Step = "canceling_appointment"
	StepWaitingForAgent Step = "waiting_for_agent"
	StepPlanBrowse      Step = "platform_plan_browse"
	StepPlanConfirm     Step = "platform_plan_confirm"
)

// StepData is the tagged per-step payload. Each step family carries only the
// fields it needs; handlers type-assert on the concrete type.
type StepData interface {
	stepData()
}

// IdentifyData accumulates customer identity during the identification
// sub-flow. Resume remembers the step the customer originally asked for.
type IdentifyData struct {
	Phone      string
	NationalID string
	Name       string
	Resume     Step
}

// BrowseData carries the booking sub-flow selections.
type BrowseData struct {
	BranchID   string
	ServiceID  string
	ResourceID string
	Date       string // "YYYY-MM-DD"
	Slot       string // "HH:MM"
	Offset     int    // pagination offset into the current listing
}

// ViewData carries the upcoming-appointment listing for view/cancel flows.
type ViewData struct {
	AppointmentIDs []string
	Selected       string
	Offset         int
}

// HandoffData marks a session routed to a human agent.
type HandoffData struct {
	AgentID        string
	CustomerName   string
	LastMsgToAgent string // message id of the last forward, for reply threading
}

// PlanData carries the platform-plan purchase flow.
type PlanData struct {
	PlanID string
	Offset int
}

func (IdentifyData) stepData() {}
func (BrowseData) stepData()   {}
func (ViewData) stepData()     {}
func (HandoffData) stepData()  {}
func (PlanData) stepData()     {}

// Session is the per-customer conversation state, keyed by (tenant, phone).
// It lives only in process memory and is not durable across restarts.
type Session struct {
	TenantID string
	Phone    string
	Step     Step
	Data     StepData
	// HandoffOpen marks a customer who stepped out of a live handoff into a
	// self-service flow; the agent is told when they conclude a booking.
	HandoffOpen bool
	LastInbound time.Time
	UpdatedAt   time.Time
}

// SessionKey builds the store key for a tenant-scoped customer channel id.
func SessionKey(tenantID, phone string) string {
	return tenantID + "|" + phone
}
