package graphql

const emailFields = `
      id
      subject
      sender { name email }
      recipients
      body
      date
      isRead
      isStarred
      folder
      labelIds
      labels { id name }
      attachments { name size url }`

const (
	queryEmails = `query GetEmails($folder: String, $labelId: ID, $query: String) {
    emails(folder: $folder, labelId: $labelId, query: $query) {` + emailFields + `
    }
  }`

	queryEnhancedSearch = `query EnhancedSearch($query: String!, $filters: SearchFilterInput, $useAI: Boolean!) {
    enhancedSearch(query: $query, filters: $filters, useAI: $useAI) {` + emailFields + `
    }
  }`

	queryLabelStats = `query GetEmailLabelStats {
    getEmailLabelStats {
      labels { id name type }
      stats { labelId name total unread color }
    }
  }`

	queryEmailByID = `query GetEmailById($emailId: ID!) {
    email(id: $emailId) {` + emailFields + `
    }
  }`

	queryLabels = `query GetLabels {
    labels { id name color type labelListVisibility messageListVisibility }
  }`

	queryDrafts = `query GetDrafts {
    drafts { id subject body recipients createdAt updatedAt }
  }`

	queryCurrentUser = `query GetCurrentUser {
    currentUser { id name email avatar }
  }`

	queryAllUsers = `query GetAllUsers {
    users { id name email avatar }
  }`

	mutationCreateLabel = `mutation CreateLabel($input: LabelInput!) {
    createLabel(input: $input) { id name color type labelListVisibility messageListVisibility }
  }`

	mutationDeleteLabel = `mutation DeleteLabel($labelId: ID!) {
    deleteLabel(id: $labelId)
  }`

	mutationSetStarred = `mutation UpdateEmailStarred($emailId: ID!, $isStarred: Boolean!) {
    updateEmailStarred(id: $emailId, isStarred: $isStarred) { id isStarred }
  }`

	mutationMoveEmail = `mutation MoveEmail($emailId: ID!, $folder: String!) {
    moveEmail(id: $emailId, folder: $folder) { id folder }
  }`

	mutationApplyLabel = `mutation ApplyLabel($emailId: ID!, $labelId: ID!) {
    applyLabel(emailId: $emailId, labelId: $labelId) { id labels { id name } }
  }`

	mutationRemoveLabel = `mutation RemoveLabel($emailId: ID!, $labelId: ID!) {
    removeLabel(emailId: $emailId, labelId: $labelId) { id labels { id name } }
  }`

	mutationSaveDraft = `mutation SaveDraft($input: DraftInput!) {
    saveDraft(input: $input) { id subject body recipients createdAt updatedAt }
  }`

	mutationSendEmail = `mutation SendEmail($draftId: ID!) {
    sendEmail(draftId: $draftId) {` + emailFields + `
    }
  }`

	mutationSwitchUser = `mutation SwitchUser($userId: ID!) {
    switchUser(userId: $userId) { id name email avatar }
  }`
)
