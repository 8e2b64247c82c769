/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package anchor

import "errors"

var (
	ErrSignerMissing   = errors.New("issuer signing capability not configured")
	ErrVerifierMissing = errors.New("issuer verification key not configured")
)
