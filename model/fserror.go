// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

package model

// FSErrorCode is a function-specific error code returned inside a
// MemorySessionOpen/MemoryWrite/MemorySessionClose response payload
// (spec §4.9's error recovery table), distinct from the coarser
// ResultCode carried at the envelope level.
type FSErrorCode uint32

const (
	FSNone FSErrorCode = 0

	FSHwResetReq     FSErrorCode = 0x200110
	FSSessionActive  FSErrorCode = 0x200111
	FSCfgStringError FSErrorCode = 0x200112
	FSCfgWriteError  FSErrorCode = 0x200113
	FSCfgFullError   FSErrorCode = 0x200114
	FSAddrEven       FSErrorCode = 0x200115
	FSLenEven        FSErrorCode = 0x200116
	FSSumOutOfRange  FSErrorCode = 0x200117
	FSMemIDError     FSErrorCode = 0x200118
	FSHdlMatchError  FSErrorCode = 0x200119
)

func (c FSErrorCode) String() string {
	switch c {
	case FSNone:
		return "None"
	case FSHwResetReq:
		return "HW_RESET_REQ"
	case FSSessionActive:
		return "SESSION_ACTIVE"
	case FSCfgStringError:
		return "CFG_STRING_ERROR"
	case FSCfgWriteError:
		return "CFG_WRITE_ERROR"
	case FSCfgFullError:
		return "CFG_FULL_ERROR"
	case FSAddrEven:
		return "ADDR_EVEN"
	case FSLenEven:
		return "LEN_EVEN"
	case FSSumOutOfRange:
		return "SUM_OUT_OF_RANGE"
	case FSMemIDError:
		return "MEMID_ERROR"
	case FSHdlMatchError:
		return "HDL_MATCH_ERROR"
	default:
		return "Unknown"
	}
}
