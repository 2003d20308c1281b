package v1

// Topic layout follows the one-topic-per-system policy: addressed
// commands and queries travel on the owning system's topic and are
// routed by action, broadcast events travel on the shared event topics.
const (
	TopicMission   = "gcs.mission"
	TopicFleet     = "gcs.fleet"
	TopicTelemetry = "gcs.telemetry"
	TopicEvents    = "gcs.events"
	TopicDrone     = "external.drone"
	TopicDockport  = "systems.dockport"
)

// Mission surface (external API collaborator -> orchestrator).
var (
	RouteTaskSubmit    = Route{Topic: TopicMission, Action: "task.submit"}
	RouteMissionCancel = Route{Topic: TopicMission, Action: "mission.cancel"}
	RouteMissionGet    = Route{Topic: TopicMission, Action: "mission.get"}
)

// Fleet surface (orchestrator -> allocator).
var (
	RouteFleetAllocate = Route{Topic: TopicFleet, Action: "fleet.allocate"}
	RouteFleetRelease  = Route{Topic: TopicFleet, Action: "fleet.release"}
	RouteFleetStatus   = Route{Topic: TopicFleet, Action: "fleet.get_status"}
)

// Robot integration (sequencer -> drone adapter). Each is a query whose
// terminal response statuses are enumerated in payloads.go.
var (
	RouteDroneUploadMission = Route{Topic: TopicDrone, Action: "upload_mission"}
	RouteDroneArm           = Route{Topic: TopicDrone, Action: "arm"}
	RouteDroneTakeoff       = Route{Topic: TopicDrone, Action: "takeoff"}
	RouteDroneLand          = Route{Topic: TopicDrone, Action: "land"}
	RouteDroneReturnToBase  = Route{Topic: TopicDrone, Action: "return_to_base"}
	RouteDroneAbort         = Route{Topic: TopicDrone, Action: "abort"}
	RouteDroneHealthCheck   = Route{Topic: TopicDrone, Action: "health.check"}
)

// Docking-facility integration (orchestrator -> dock adapter).
var (
	RouteDockReserveSlots       = Route{Topic: TopicDockport, Action: "reserve_slots"}
	RouteDockPreflightCheck     = Route{Topic: TopicDockport, Action: "preflight_check"}
	RouteDockChargeToThreshold  = Route{Topic: TopicDockport, Action: "charge_to_threshold"}
	RouteDockReleaseForTakeoff  = Route{Topic: TopicDockport, Action: "release_for_takeoff"}
	RouteDockRequestLandingSlot = Route{Topic: TopicDockport, Action: "request_landing_slot"}
	RouteDockDock               = Route{Topic: TopicDockport, Action: "dock"}
	RouteDockEmergencyReceive   = Route{Topic: TopicDockport, Action: "emergency_receive"}
	RouteDockHealthCheck        = Route{Topic: TopicDockport, Action: "health.check"}
)

// Telemetry ingest (drone adapter -> telemetry monitor).
var (
	RouteTelemetryUpdate = Route{Topic: TopicTelemetry, Action: "telemetry.update"}
)

// Broadcast events exposed upward to the external API/storage collaborator.
var (
	RouteMissionCreated   = Route{Topic: TopicEvents, Action: "mission.created"}
	RouteMissionStarted   = Route{Topic: TopicEvents, Action: "mission.started"}
	RouteMissionCancelled = Route{Topic: TopicEvents, Action: "mission.cancelled"}
	RouteMissionCompleted = Route{Topic: TopicEvents, Action: "mission.completed"}
	RouteMissionFailed    = Route{Topic: TopicEvents, Action: "mission.failed"}

	RouteGroupFormed        = Route{Topic: TopicEvents, Action: "orchestrator.group.formed"}
	RouteExecutionStarted   = Route{Topic: TopicEvents, Action: "orchestrator.execution.started"}
	RouteExecutionCompleted = Route{Topic: TopicEvents, Action: "orchestrator.execution.completed"}
	RouteExecutionFailed    = Route{Topic: TopicEvents, Action: "orchestrator.execution.failed"}

	RouteFleetAllocated          = Route{Topic: TopicEvents, Action: "fleet.allocated"}
	RouteFleetDroneStatusChanged = Route{Topic: TopicEvents, Action: "fleet.drone.status.changed"}
	RouteFleetDroneBatteryLow    = Route{Topic: TopicEvents, Action: "fleet.drone.battery.low"}
	RouteFleetDroneUnavailable   = Route{Topic: TopicEvents, Action: "fleet.drone.unavailable"}

	RouteRobotConnected       = Route{Topic: TopicEvents, Action: "robot.connected"}
	RouteRobotDisconnected    = Route{Topic: TopicEvents, Action: "robot.disconnected"}
	RouteRobotStateChanged    = Route{Topic: TopicEvents, Action: "robot.state.changed"}
	RouteRobotMissionProgress = Route{Topic: TopicEvents, Action: "robot.mission.progress"}
	RouteRobotError           = Route{Topic: TopicEvents, Action: "robot.error"}

	RouteTelemetryAnomaly      = Route{Topic: TopicEvents, Action: "telemetry.anomaly.detected"}
	RouteTelemetryDroneOffline = Route{Topic: TopicEvents, Action: "telemetry.drone.offline"}

	RouteHeartbeat       = Route{Topic: TopicEvents, Action: "heartbeat"}
	RouteSystemDegraded  = Route{Topic: TopicEvents, Action: "system.degraded"}
	RouteSystemRecovered = Route{Topic: TopicEvents, Action: "system.recovered"}

	RouteDockDiagnosticsOK       = Route{Topic: TopicEvents, Action: "diagnostics.ok"}
	RouteDockDiagnosticsFailed   = Route{Topic: TopicEvents, Action: "diagnostics.failed"}
	RouteDockChargingStarted     = Route{Topic: TopicEvents, Action: "charging.started"}
	RouteDockChargingNotRequired = Route{Topic: TopicEvents, Action: "charging.not_required"}
)
