// SPDX-License-Identifier: MIT
//go:build lightshow_debug

package detect

const debugInvariants = true
