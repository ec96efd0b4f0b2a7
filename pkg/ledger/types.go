package ledger

import "fmt"

// ZeroAddress is the sentinel the contract returns for a missing actor record.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

type ShipmentStatus uint8

const (
	StatusCreated ShipmentStatus = iota
	StatusInTransit
	StatusAtHub
	StatusOutForDelivery
	StatusDelivered
	StatusReturned
	StatusCancelled
)

var shipmentStatusNames = []string{"Created", "InTransit", "AtHub", "OutForDelivery", "Delivered", "Returned", "Cancelled"}

func (s ShipmentStatus) String() string {
	if int(s) < len(shipmentStatusNames) {
		return shipmentStatusNames[s]
	}
	return fmt.Sprintf("Unknown(%d)", uint8(s))
}

// Terminal reports whether the shipment can no longer advance.
func (s ShipmentStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusReturned || s == StatusCancelled
}

type ActorRole uint8

const (
	RoleNone ActorRole = iota
	RoleSender
	RoleCarrier
	RoleHub
	RoleRecipient
	RoleInspector
	RoleSensor
)

var actorRoleNames = []string{"None", "Sender", "Carrier", "Hub", "Recipient", "Inspector", "Sensor"}

func (r ActorRole) String() string {
	if int(r) < len(actorRoleNames) {
		return actorRoleNames[r]
	}
	return fmt.Sprintf("Unknown(%d)", uint8(r))
}

type ApprovalStatus uint8

const (
	ApprovalPending ApprovalStatus = iota
	ApprovalApproved
	ApprovalRejected
)

var approvalStatusNames = []string{"Pending", "Approved", "Rejected"}

func (a ApprovalStatus) String() string {
	if int(a) < len(approvalStatusNames) {
		return approvalStatusNames[a]
	}
	return fmt.Sprintf("Unknown(%d)", uint8(a))
}

type IncidentType uint8

const (
	IncidentDelay IncidentType = iota
	IncidentDamage
	IncidentLost
	IncidentTempViolation
)

var incidentTypeNames = []string{"Delay", "Damage", "Lost", "TempViolation"}

func (t IncidentType) String() string {
	if int(t) < len(incidentTypeNames) {
		return incidentTypeNames[t]
	}
	return fmt.Sprintf("Unknown(%d)", uint8(t))
}

// Actor mirrors the contract's actor struct. Address is the zero sentinel
// when no record exists for the queried address.
type Actor struct {
	Address        string         `json:"actor_address"`
	Name           string         `json:"name"`
	Role           ActorRole      `json:"role"`
	Location       string         `json:"location"`
	IsActive       bool           `json:"is_active"`
	ApprovalStatus ApprovalStatus `json:"approval_status"`
}

// Registered reports whether the actor may interact with shipments. All four
// conditions are independently necessary; none implies another.
func (a Actor) Registered() bool {
	return a.Address != "" && a.Address != ZeroAddress &&
		a.Role != RoleNone &&
		a.ApprovalStatus == ApprovalApproved &&
		a.IsActive
}

// Shipment temperatures are fixed-point degrees C x10; dates are unix seconds.
type Shipment struct {
	ID                    int64          `json:"id"`
	Sender                string         `json:"sender"`
	Recipient             string         `json:"recipient"`
	Product               string         `json:"product"`
	Origin                string         `json:"origin"`
	Destination           string         `json:"destination"`
	DateCreated           int64          `json:"date_created"`
	DateEstimatedDelivery int64          `json:"date_estimated_delivery"`
	DateDelivered         int64          `json:"date_delivered"`
	Status                ShipmentStatus `json:"status"`
	CheckpointIDs         []int64        `json:"checkpoint_ids"`
	IncidentIDs           []int64        `json:"incident_ids"`
	RequiresColdChain     bool           `json:"requires_cold_chain"`
	MinTemperature        int64          `json:"min_temperature"`
	MaxTemperature        int64          `json:"max_temperature"`
}

// Checkpoint coordinates are fixed-point degrees x1e6, temperature x10.
type Checkpoint struct {
	ID          int64  `json:"id"`
	ShipmentID  int64  `json:"shipment_id"`
	Actor       string `json:"actor"`
	Location    string `json:"location"`
	Type        string `json:"checkpoint_type"`
	Timestamp   int64  `json:"timestamp"`
	Notes       string `json:"notes"`
	Temperature int64  `json:"temperature"`
	Latitude    int64  `json:"latitude"`
	Longitude   int64  `json:"longitude"`
	HasDamage   bool   `json:"has_damage"`
}

type Incident struct {
	ID          int64        `json:"id"`
	ShipmentID  int64        `json:"shipment_id"`
	Type        IncidentType `json:"incident_type"`
	Reporter    string       `json:"reporter"`
	Description string       `json:"description"`
	Timestamp   int64        `json:"timestamp"`
	Resolved    bool         `json:"resolved"`
}

// ContractInfo summarizes the deployment: admin plus the next-id counters.
// Totals are next-id minus one (ids are allocated from 1).
type ContractInfo struct {
	Admin            string `json:"admin"`
	NextShipmentID   int64  `json:"next_shipment_id"`
	NextCheckpointID int64  `json:"next_checkpoint_id"`
	NextIncidentID   int64  `json:"next_incident_id"`
}
