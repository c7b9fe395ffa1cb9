// SPDX-License-Identifier: Apache-2.0

package domain

import "errors"

var ErrUnknownEntityType = errors.New("unknown entity type")
var ErrEntityNotFound = errors.New("entity not found")
var ErrNoWorkflowDefined = errors.New("no approval workflow defined for entity type")
var ErrWorkflowComplete = errors.New("approval workflow already complete")
var ErrStepRoleMismatch = errors.New("acting role does not match required role for current step")
var ErrStepOutOfOrder = errors.New("decision step does not match current workflow step")
var ErrStepAlreadyDecided = errors.New("decision already recorded for this step")
var ErrInvalidDecision = errors.New("invalid decision value")
var ErrInvalidTokenEmail = errors.New("invalid token email")
