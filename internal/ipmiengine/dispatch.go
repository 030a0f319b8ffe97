package ipmiengine

import "encoding/binary"

// In-session NetFn/Cmd pairs dispatched explicitly; any
// other pair falls through to completionCmdNotSupported.
const (
	netFnApp     = 0x06
	netFnChassis = 0x00
	netFnLAN     = 0x0c

	cmdGetDeviceID   = 0x01
	cmdColdReset     = 0x02
	cmdCloseSession  = 0x3c
	cmdGetChanAccess = 0x41
	cmdGetChanInfo   = 0x42

	cmdGetChassisStatus   = 0x01
	cmdChassisControl     = 0x02
	cmdSetBootOptions     = 0x08
	cmdGetBootOptions     = 0x09

	cmdGetLanConfigParams = 0x02

	lanParamMACAddress = 5
)

// deviceIDBytes is a minimal "Get Device ID" body: device id, device
// revision, firmware revision (major/minor), IPMI version 2.0,
// additional device support 0xbf (every capability bit except bridge:
// chassis, IPMB event generator/receiver, FRU, SEL, SDR repository,
// sensor), manufacturer/product IDs left at 0.
var deviceIDBytes = []byte{0x00, 0x81, 0x01, 0x00, 0x02, 0xbf, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}

// handleInSession dispatches one IPMB request against an ACTIVE session
// and returns the completed response frame.
func (e *Engine) handleInSession(sess *session, h *sessionHeader) []byte {
	if len(h.IPMB) < 6 {
		return nil
	}

	netFn, myLun := netFnLun(h.IPMB[1])
	myAddr := h.IPMB[0]
	rqAddr := h.IPMB[3]
	rqLun, rqSeq := splitSeqLun(h.IPMB[4])
	cmd := h.IPMB[5]

	var reqData []byte
	if len(h.IPMB) > 7 {
		reqData = h.IPMB[6 : len(h.IPMB)-1]
	}

	data, completion, closing := e.dispatchCommand(sess, netFn, cmd, reqData)

	ipmb := buildIPMBResponse(myAddr, myLun, rqAddr, rqLun, rqSeq, netFn, cmd, completion, data)
	sess.sendSeq++
	frame := buildV2Frame(payloadTypeIPMI, sess.managedSessionID, sess.sendSeq, ipmb)

	// The close response is built before the session's keys are
	// wiped; the record is gone by the time the reply is on the wire.
	if closing {
		sess.zeroKeys()
		sess.state = stateClosed
		delete(e.sessions, sess.managedSessionID)
	}
	return frame
}

// dispatchCommand runs one in-session command handler. A panic inside a
// handler is contained here and answered as 0xff (unspecified error) so
// that neither the session nor the listener dies with it.
func (e *Engine) dispatchCommand(sess *session, netFn, cmd byte, reqData []byte) (data []byte, completion byte, closing bool) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error().Interface("panic", r).Uint8("netfn", netFn).Uint8("cmd", cmd).Msg("command handler panicked")
			data, completion, closing = nil, completionUnspecified, false
		}
	}()

	completion = completionCmdNotSupported

	switch {
	case netFn == netFnApp && cmd == cmdGetDeviceID:
		data, completion = deviceIDBytes, completionOK
	case netFn == netFnApp && cmd == cmdColdReset:
		completion = completionOK
	case netFn == netFnApp && cmd == cmdCloseSession:
		completion, closing = e.closeSessionCompletion(sess, reqData)
	case netFn == netFnApp && cmd == cmdGetChanAccess:
		data, completion = []byte{0b00100010, 0x04}, completionOK
	case netFn == netFnApp && cmd == cmdGetChanInfo:
		data, completion = []byte{0x02, 0x04, 0x01, 0x80, 0xf2, 0x1b, 0x00, 0x00, 0x00}, completionOK

	case netFn == netFnChassis && cmd == cmdGetChassisStatus:
		data, completion = e.chassisStatusData()
	case netFn == netFnChassis && cmd == cmdChassisControl:
		completion = e.handleChassisControl(reqData)
	case netFn == netFnChassis && (cmd == cmdSetBootOptions || cmd == cmdGetBootOptions):
		// Boot device persistence is a stub: both get and
		// set report node-busy unconditionally.
		completion = completionNodeBusy

	case netFn == netFnLAN && cmd == cmdGetLanConfigParams:
		data, completion = e.lanConfigParamsData(reqData)
	}

	return data, completion, closing
}

// closeSessionCompletion validates a Close Session request's session id
// against the session carrying it. The record is only torn down after
// the response frame is built.
func (e *Engine) closeSessionCompletion(sess *session, reqData []byte) (completion byte, closing bool) {
	if len(reqData) < 4 {
		return completionInvalidData, false
	}
	if binary.LittleEndian.Uint32(reqData[:4]) != sess.managedSessionID {
		return completionInvalidData, false
	}
	return completionOK, true
}

// lanConfigParamsData answers Get LAN Configuration Parameters; only
// parameter 5 (MAC address) is meaningful here.
func (e *Engine) lanConfigParamsData(reqData []byte) ([]byte, byte) {
	if len(reqData) < 2 {
		return []byte{0x00}, 0x80
	}
	if reqData[1] != lanParamMACAddress {
		return []byte{0x00}, 0x80 // parameter not supported
	}
	data := append([]byte{0x00}, e.fakeMAC[:]...)
	return data, completionOK
}

// buildIPMBResponse builds the IPMB-shaped reply body for an in-session
// command: [rqAddr, netFn|rqLUN, checksum, rsAddr (myAddr), rqSeq|rsLUN,
// cmd, completion, data..., checksum].
func buildIPMBResponse(myAddr, myLun, rqAddr, rqLun, rqSeq, reqNetFn, cmd, completion byte, data []byte) []byte {
	respNetFn := reqNetFn | 0x01

	ipmb := []byte{rqAddr, rqLun | (respNetFn << 2)}
	headerSum := ipmiChecksum(ipmb...)
	ipmb = append(ipmb, headerSum, myAddr, myLun|(rqSeq<<2), cmd, completion)
	ipmb = append(ipmb, data...)

	bodyStart := 3 // myAddr onward
	ipmb = append(ipmb, ipmiChecksum(ipmb[bodyStart:]...))
	return ipmb
}
