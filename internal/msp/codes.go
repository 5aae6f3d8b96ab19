// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package msp

// MultiWii Serial Protocol command IDs.
const (
	// Getters
	CmdIdent     byte = 100
	CmdStatus    byte = 101
	CmdRawIMU    byte = 102
	CmdServo     byte = 103
	CmdMotor     byte = 104
	CmdRC        byte = 105
	CmdRawGPS    byte = 106
	CmdCompGPS   byte = 107
	CmdAttitude  byte = 108
	CmdAltitude  byte = 109
	CmdAnalog    byte = 110
	CmdRCTuning  byte = 111
	CmdPID       byte = 112
	CmdBox       byte = 113
	CmdMisc      byte = 114
	CmdMotorPins byte = 115
	CmdBoxNames  byte = 116
	CmdPIDNames  byte = 117
	CmdWP        byte = 118
	CmdBoxIDs    byte = 119

	// Setters
	CmdSetRawRC       byte = 200
	CmdSetRawGPS      byte = 201
	CmdSetPID         byte = 202
	CmdSetBox         byte = 203
	CmdSetRCTuning    byte = 204
	CmdAccCalibration byte = 205
	CmdMagCalibration byte = 206
	CmdSetMisc        byte = 207
	CmdResetConf      byte = 208
	CmdSetWP          byte = 209
	CmdSwitchRCSerial byte = 210
	CmdIsSerial       byte = 211
	CmdDebug          byte = 254
)

var commandNames = map[byte]string{
	CmdIdent:          "ident",
	CmdStatus:         "status",
	CmdRawIMU:         "raw_imu",
	CmdServo:          "servo",
	CmdMotor:          "motor",
	CmdRC:             "rc",
	CmdRawGPS:         "raw_gps",
	CmdCompGPS:        "comp_gps",
	CmdAttitude:       "attitude",
	CmdAltitude:       "altitude",
	CmdAnalog:         "analog",
	CmdRCTuning:       "rc_tuning",
	CmdPID:            "pid",
	CmdBox:            "box",
	CmdMisc:           "misc",
	CmdMotorPins:      "motor_pins",
	CmdBoxNames:       "box_names",
	CmdPIDNames:       "pid_names",
	CmdWP:             "wp",
	CmdBoxIDs:         "box_ids",
	CmdSetRawRC:       "set_raw_rc",
	CmdSetRawGPS:      "set_raw_gps",
	CmdSetPID:         "set_pid",
	CmdSetBox:         "set_box",
	CmdSetRCTuning:    "set_rc_tuning",
	CmdAccCalibration: "acc_calibration",
	CmdMagCalibration: "mag_calibration",
	CmdSetMisc:        "set_misc",
	CmdResetConf:      "reset_conf",
	CmdSetWP:          "set_wp",
	CmdSwitchRCSerial: "switch_rc_serial",
	CmdIsSerial:       "is_serial",
	CmdDebug:          "debug",
}

// CommandName returns the lower-case name of cmd, or "" if it is unknown.
func CommandName(cmd byte) string {
	return commandNames[cmd]
}

// IsGetter reports whether cmd only reads from the controller.
func IsGetter(cmd byte) bool {
	return cmd >= CmdIdent && cmd < CmdSetRawRC
}
